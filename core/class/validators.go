package class

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorhub/core"
)

var (
	endDateTag  = "enddate"
	endDateText = "end_date cannot be before start_date"

	endTimeTag  = "endtime"
	endTimeText = "end_time must be after start_time"

	slotKindTag  = "slotkind"
	slotKindText = "exactly one of day_of_week or session_date is required"
)

// InitValidators registers the class validations & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(classStructValidation, NewClass{}, UpdateClass{})
	core.RegisterCustomTranslation(validate, translator, endDateTag, endDateText)

	validate.RegisterStructValidation(scheduleStructValidation, NewSchedule{})
	core.RegisterCustomTranslation(validate, translator, endTimeTag, endTimeText)
	core.RegisterCustomTranslation(validate, translator, slotKindTag, slotKindText)
}

func classStructValidation(sl validator.StructLevel) {
	switch cls := sl.Current().Interface().(type) {
	case NewClass:
		if cls.StartDate != nil && cls.EndDate != nil && cls.EndDate.Before(*cls.StartDate) {
			sl.ReportError(cls.EndDate, "end_date", "EndDate", endDateTag, "")
		}
	case UpdateClass:
		if cls.StartDate != nil && cls.EndDate != nil && cls.EndDate.Before(*cls.StartDate) {
			sl.ReportError(cls.EndDate, "end_date", "EndDate", endDateTag, "")
		}
	}
}

// scheduleStructValidation checks that a slot is either weekly or one-off, and ends after it starts.
// "HH:MM" strings compare like the times they represent.
func scheduleStructValidation(sl validator.StructLevel) {
	sch := sl.Current().Interface().(NewSchedule)
	if (sch.DayOfWeek == nil) == (sch.SessionDate == nil) {
		sl.ReportError(sch.DayOfWeek, "day_of_week", "DayOfWeek", slotKindTag, "")
	}
	if sch.StartTime != "" && sch.EndTime != "" && sch.EndTime <= sch.StartTime {
		sl.ReportError(sch.EndTime, "end_time", "EndTime", endTimeTag, "")
	}
}

// Package inmemdb keeps every table in memory. It backs the tests and the API when no database is configured.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/assignment"
	"github.com/trezcool/tutorhub/core/class"
	"github.com/trezcool/tutorhub/core/enrollment"
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

type DB struct {
	sync.RWMutex
	tx sync.Mutex

	users       map[string]user.User
	profiles    map[string]profile.Profile // by user ID
	classes     map[string]class.Class
	schedules   map[string]class.Schedule
	resources   map[string]class.Resource
	enrollments map[string]enrollment.Enrollment
	assignments map[string]assignment.Assignment
	submissions map[string]assignment.Submission
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		users:       make(map[string]user.User),
		profiles:    make(map[string]profile.Profile),
		classes:     make(map[string]class.Class),
		schedules:   make(map[string]class.Schedule),
		resources:   make(map[string]class.Resource),
		enrollments: make(map[string]enrollment.Enrollment),
		assignments: make(map[string]assignment.Assignment),
		submissions: make(map[string]assignment.Submission),
	}
}

// WithinTx serializes units of work; there is no rollback, fn receives a nil executor.
func (db *DB) WithinTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.tx.Lock()
	defer db.tx.Unlock()
	return fn(nil)
}

// Flush empties every table.
func (db *DB) Flush() {
	db.Lock()
	defer db.Unlock()
	fresh := Open()
	db.users, db.profiles = fresh.users, fresh.profiles
	db.classes, db.schedules, db.resources = fresh.classes, fresh.schedules, fresh.resources
	db.enrollments = fresh.enrollments
	db.assignments, db.submissions = fresh.assignments, fresh.submissions
}

type comparator[T any] func(a, b T) int

// orderBy sorts items by the given orderings; fields without a comparator are ignored.
// The fallback comparator breaks ties.
func orderBy[T any](items []T, ordering []core.DBOrdering, cmps map[string]comparator[T], fallback comparator[T]) {
	less := func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(items[i], items[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return fallback(items[i], items[j]) < 0
	}
	sort.SliceStable(items, less)
}

func compareStrings(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) }

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// compareTimePtrs sorts nil (never happened) first.
func compareTimePtrs(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compareTimes(*a, *b)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func idSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	tg := newPasswordResetTokenGenerator("secret", timeout)

	now := time.Now().UTC()
	usr := User{
		ID:        "9b2f5c1e-4d0a-4c8e-9f3a-0d6a1c2b3e4f",
		Email:     "t@tutorhub.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: &now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := tg.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := tg.makeToken(usr)
	NowFunc = time.Now // reset

	loggedInAgain := usr
	later := now.Add(time.Minute)
	loggedInAgain.LastLogin = &later

	otherPurpose, _ := newEmailConfirmTokenGenerator("secret", timeout).makeToken(usr)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "last login changed", usr: loggedInAgain, token: validToken, wantErr: errInvalidToken},
		{name: "other purpose", usr: usr, token: otherPurpose, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tg.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmailConfirmToken(t *testing.T) {
	tg := newEmailConfirmTokenGenerator("secret", 7*24*time.Hour)
	usr := User{ID: "9b2f5c1e-4d0a-4c8e-9f3a-0d6a1c2b3e4f", Email: "t@tutorhub.test"}

	token, err := tg.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}
	if err = tg.verifyToken(usr, token); err != nil {
		t.Errorf("verifyToken() error = %v", err)
	}

	changedEmail := usr
	changedEmail.Email = "other@tutorhub.test"
	if err = tg.verifyToken(changedEmail, token); err != errInvalidToken {
		t.Errorf("verifyToken() after email change error = %v, want %v", err, errInvalidToken)
	}

	now := time.Now()
	confirmed := usr
	confirmed.EmailConfirmedAt = &now
	if err = tg.verifyToken(confirmed, token); err != errInvalidToken {
		t.Errorf("verifyToken() after confirmation error = %v, want %v", err, errInvalidToken)
	}
}

func TestUID(t *testing.T) {
	usr := User{ID: "9b2f5c1e-4d0a-4c8e-9f3a-0d6a1c2b3e4f"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil || id != usr.ID {
		t.Errorf("decodeUID(EncodeUID()) = %q, %v; want %q", id, err, usr.ID)
	}
	if _, err = decodeUID("not base64!"); err == nil {
		t.Error("decodeUID() want error on garbage")
	}
}

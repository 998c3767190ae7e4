package samba

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "alice"},
		{name: "dotted", input: "alice.liddell"},
		{name: "hyphen and underscore", input: "svc-backup_01"},
		{name: "inner space", input: "alice liddell"},
		{name: "max length", input: strings.Repeat("a", MaxUserNameLength)},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxUserNameLength+1), wantErr: true},
		{name: "leading space", input: " alice", wantErr: true},
		{name: "trailing space", input: "alice ", wantErr: true},
		{name: "trailing period", input: "alice.", wantErr: true},
		{name: "at sign", input: "alice@example", wantErr: true},
		{name: "backslash", input: `SAMDOM\alice`, wantErr: true},
		{name: "brackets", input: "alice[1]", wantErr: true},
		{name: "control character", input: "ali\tce", wantErr: true},
		{name: "non ascii", input: "zoë", wantErr: true},
		{name: "short option", input: "-H", wantErr: true},
		{name: "long option", input: "--random-password", wantErr: true},
		{name: "inner hyphen only", input: "a-", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateGroupName(t *testing.T) {
	assert.NoError(t, ValidateGroupName("Engineering Leads"))
	assert.NoError(t, ValidateGroupName(strings.Repeat("g", MaxGroupNameLength)))
	assert.ErrorIs(t, ValidateGroupName(strings.Repeat("g", MaxGroupNameLength+1)), ErrValidation)
	assert.ErrorIs(t, ValidateGroupName("ops|dev"), ErrValidation)
	assert.ErrorIs(t, ValidateGroupName("--groupou=OU=x"), ErrValidation)
}

func TestValidateOU(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "empty means default container", input: ""},
		{name: "ou path", input: "OU=Staff,DC=samdom,DC=example,DC=com"},
		{name: "escaped comma", input: `OU=Sales\, EMEA,DC=samdom,DC=example,DC=com`},
		{name: "no attribute type", input: "Staff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOU(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	strict := &PasswordPolicy{MinLength: 8, Complexity: true}
	lax := &PasswordPolicy{MinLength: 4}

	tests := []struct {
		name     string
		password string
		account  string
		policy   *PasswordPolicy
		wantErr  string
	}{
		{name: "empty without policy", password: "", wantErr: "must not be empty"},
		{name: "anything without policy", password: "x", account: "alice"},
		{name: "too short", password: "Ab1!", policy: strict, wantErr: "shorter than the domain minimum of 8"},
		{name: "complex enough", password: "Passw0rd!", account: "alice", policy: strict},
		{name: "three classes", password: "Password12", account: "bob", policy: strict},
		{name: "two classes", password: "passwordpassword1", account: "bob", policy: strict, wantErr: "three of"},
		{name: "contains account", password: "xAlice2024!", account: "alice", policy: strict, wantErr: "account name"},
		{name: "short account names are not checked", password: "Bob2024!xx", account: "bo", policy: strict},
		{name: "no complexity", password: "aaaa", account: "alice", policy: lax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.account, tt.policy)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.password != "" {
				assert.NotContains(t, err.Error(), tt.password)
			}
		})
	}
}

func TestNormalizeMembers(t *testing.T) {
	got, err := normalizeMembers([]string{" alice ", "bob", "ALICE", "ws01$", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "ws01$"}, got)

	_, err = normalizeMembers([]string{"alice", "bad,name"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = normalizeMembers([]string{""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = normalizeMembers([]string{"alice", "-h"})
	assert.ErrorIs(t, err, ErrValidation)
}

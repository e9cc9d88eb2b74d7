package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
)

func TestSessionEventRepoRecordValidation(t *testing.T) {
	repo := NewSessionEventRepo(nil)

	cases := []struct {
		name string
		ev   domainauth.SessionEvent
	}{
		{"missing id", domainauth.SessionEvent{Kind: domainauth.EventSignIn, Identifier: "a@school.test"}},
		{"missing kind", domainauth.SessionEvent{ID: "e-1", Identifier: "a@school.test"}},
		{"missing identifier", domainauth.SessionEvent{ID: "e-1", Kind: domainauth.EventSignIn}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.Record(context.Background(), tc.ev)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestSessionEventRepoRecentValidation(t *testing.T) {
	repo := NewSessionEventRepo(nil)

	_, err := repo.RecentByIdentifier(context.Background(), "  ", 10)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSessionEventRepoPurgeValidation(t *testing.T) {
	repo := NewSessionEventRepo(nil)

	_, err := repo.PurgeOlderThan(context.Background(), 0)
	assert.Error(t, err)

	_, err = repo.PurgeOlderThan(context.Background(), -time.Hour)
	assert.Error(t, err)
}

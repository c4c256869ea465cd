package update

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"complete", Event{Status: "WRITING", Message: "Writing updates to a.go..."}, false},
		{"unknown status is still well formed", Event{Status: "ERROR", Message: "Error: boom"}, false},
		{"missing status", Event{Message: "hello"}, true},
		{"blank message", Event{Status: "SCANNING", Message: "   "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.event)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEvent))
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("backend row", func(t *testing.T) {
		raw := []byte(`{
			"id": 42,
			"created_at": "2025-03-08 17:45:26.123456+00",
			"status": "WRITING",
			"message": "Writing updates to pages/index.tsx...",
			"code": "export default 1",
			"repository_owner": "nebudev14",
			"repository_name": "outdated-website",
			"file_path": null,
			"lines_changed": 3
		}`)

		e, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(42), e.ID)
		assert.Equal(t, "export default 1", e.Code)
		assert.Empty(t, e.FilePath)
		require.NotNil(t, e.LinesChanged)
		assert.Equal(t, 3, *e.LinesChanged)
		assert.Equal(t, time.Date(2025, 3, 8, 17, 45, 26, 123456000, time.UTC), e.CreatedAt.UTC())
	})

	t.Run("null code", func(t *testing.T) {
		e, err := Decode([]byte(`{"id":1,"status":"READING","message":"Initializing repository scan...","code":null}`))
		require.NoError(t, err)
		assert.False(t, e.HasCode())
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := Decode([]byte(`{"id":1,"status":"READING"}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchemaViolation))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := Decode([]byte(`{"id":"one","status":"READING","message":"x"}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchemaViolation))
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Decode([]byte(`{`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDecodeFailed))
	})
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2024-01-01",
		"2024-01-01T10:00:00Z",
		"2024-01-01T10:00:00.5+02:00",
		"2024-01-01 10:00:00+00",
	} {
		ts, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, ts.Year(), s)
	}

	_, err := ParseTimestamp("yesterday")
	require.Error(t, err)
}

func TestRepository(t *testing.T) {
	r, ok := Event{RepositoryOwner: "acme", RepositoryName: "site.git"}.Repository()
	require.True(t, ok)
	assert.Equal(t, "https://github.com/acme/site/pulls", r.PullRequestsURL())

	_, ok = Event{RepositoryOwner: "acme"}.Repository()
	assert.False(t, ok)
}

func TestDecodeBatch(t *testing.T) {
	events, rejected, err := DecodeBatch([]byte(`[
		{"id":1,"status":"READING","message":"Reading a.go..."},
		{"id":2,"status":"","message":"blank status"},
		{"id":3,"status":"WRITING","message":"Writing updates to a.go...","code":"x"}
	]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[1].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, 1, rejected[0].Index)
	assert.True(t, errors.Is(rejected[0].Err, ErrSchemaViolation))

	_, _, err = DecodeBatch([]byte(`{"id":1}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeFailed))
}

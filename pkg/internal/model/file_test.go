package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/dropvault/pkg/internal/model"
)

func TestAvailability(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := model.FileRecord{CreatedAt: created, ExpiresAt: created.Add(time.Minute)}

	assert.True(t, rec.IsAvailable(created))
	assert.False(t, rec.IsExpired(created.Add(59*time.Second)))

	// 边界时刻算过期
	assert.False(t, rec.IsAvailable(rec.ExpiresAt))
	assert.True(t, rec.IsExpired(rec.ExpiresAt))

	rec.IsDeleted = true
	assert.False(t, rec.IsAvailable(created))
}

func TestContentTypeOr(t *testing.T) {
	rec := model.FileRecord{}
	assert.Equal(t, "application/octet-stream", rec.ContentTypeOr("application/octet-stream"))

	empty := ""
	rec.ContentType = &empty
	assert.Equal(t, "x", rec.ContentTypeOr("x"))

	pdf := "application/pdf"
	rec.ContentType = &pdf
	assert.Equal(t, pdf, rec.ContentTypeOr("x"))
}

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	in := time.Date(2026, 1, 2, 11, 0, 0, 123456789, loc)

	out := model.Normalize(in)

	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 123456000, out.Nanosecond())
	assert.True(t, in.Truncate(time.Microsecond).Equal(out))
}

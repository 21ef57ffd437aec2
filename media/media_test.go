package media

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name   string
		header *multipart.FileHeader
		ok     bool
	}{
		{"png", &multipart.FileHeader{Filename: "sink.PNG", Size: 1024}, true},
		{"webp", &multipart.FileHeader{Filename: "a.webp", Size: 10}, true},
		{"empty", &multipart.FileHeader{Filename: "a.jpg", Size: 0}, false},
		{"too big", &multipart.FileHeader{Filename: "a.jpg", Size: MaxImageBytes + 1}, false},
		{"pdf", &multipart.FileHeader{Filename: "invoice.pdf", Size: 100}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.header)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidImage)
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "kitchen", BaseName("../photos/kitchen.jpg"))
	assert.Equal(t, "x", BaseName("x"))
}

func TestNewCloudinary_RequiresURL(t *testing.T) {
	_, err := NewCloudinary("")
	assert.Error(t, err)
}

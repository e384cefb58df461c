package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedImageURL(t *testing.T) {
	allowed := []string{
		"https://imgur.com/gallery/abc",
		"https://i.imgur.com/abc.png",
		"https://images.unsplash.com/photo-123",
		"https://cdn.example.org/asset",
		"https://i.redd.it/xyz",
		"https://media.example.net/x",
		"https://img.example.com/p",
		"https://res.cloudinary.com/demo/image/upload/sample",
		"https://imagedelivery.net/key/id/public",
		"https://example.com/pictures/cat.JPG",
		"http://example.com/a/b.webp",
		"https://example.com/a.avif",
	}
	for _, u := range allowed {
		assert.True(t, IsAllowedImageURL(u), u)
	}

	rejected := []string{
		"",
		"not a url",
		"https://example.com/page.html",
		"https://example.com/image.png.html",
		"ftp://cdn.example.com/a.png",
		"javascript:alert(1)//x.png",
		"/relative/path.png",
	}
	for _, u := range rejected {
		assert.False(t, IsAllowedImageURL(u), u)
	}
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("image_url", " https://i.imgur.com/a.png "))

	err := ValidateImageURL("image_url", "https://example.com/page")
	assert.ErrorIs(t, err, ErrValidation)
	var fe *FieldError
	if assert.ErrorAs(t, err, &fe) {
		assert.Equal(t, "image_url", fe.Field)
	}

	assert.ErrorIs(t, ValidateImageURL("image_url", ""), ErrValidation)
}

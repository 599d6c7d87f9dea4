package helpers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const ServiceImagesFolder = "services"

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	numberRe  = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[@$!%*?&]`)
)

func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	return lowerRe.MatchString(password) &&
		upperRe.MatchString(password) &&
		numberRe.MatchString(password) &&
		specialRe.MatchString(password)
}

// StringTrim collapses runs of whitespace into single spaces.
func StringTrim(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GenerateOTP returns a numeric code of the given length drawn from crypto/rand.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid otp length %d", length)
	}
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("crypto rand failed: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

var ErrUploadsDisabled = errors.New("image uploads are not configured")

type ImageUploader interface {
	UploadImage(ctx context.Context, file interface{}, folder string) (string, error)
}

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cld *cloudinary.Cloudinary) *CloudinaryUploader {
	return &CloudinaryUploader{cld: cld}
}

func (u *CloudinaryUploader) UploadImage(ctx context.Context, file interface{}, folder string) (string, error) {
	if u == nil || u.cld == nil {
		return "", ErrUploadsDisabled
	}
	res, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: folder,
		Tags:   []string{"repairhub"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// uploadReviewPhotoToCloudinary uploads a file under the reviews folder
// with a controlled public ID so re-uploads never overwrite each other.
func (app *application) uploadReviewPhotoToCloudinary(file io.Reader, reviewID string) (string, error) {
	publicID := fmt.Sprintf("review_%s_%s", reviewID, uuid.NewString()[:8])

	resp, err := app.cld.Upload.Upload(
		context.Background(), // using a background context for external call
		file,
		uploader.UploadParams{
			Folder:    "reviews",
			PublicID:  publicID,
			Overwrite: api.Bool(false),
		},
	)
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	return resp.SecureURL, nil
}

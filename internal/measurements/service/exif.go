package service

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifCaptureTime reads the capture timestamp out of a photo's EXIF block.
// Screenshots and stripped images simply have none.
func exifCaptureTime(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	ts, err := x.DateTime()
	if err != nil {
		return nil
	}
	return &ts
}

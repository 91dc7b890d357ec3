package ports

import "github.com/user/replayclipper/pkg/media"

// Presenter receives video frames once they are due for display.
type Presenter interface {
	// Present shows the frame. The frame's pixels must not be retained
	// past the call unless copied.
	Present(frame media.VideoFrame) error
}

package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Frame geometry and compression sent to the endpoint. The model reads
// frames as context, so a small lossy image is plenty.
const (
	frameWidth  = 320
	frameHeight = 240
	jpegQuality = 50
)

// Webcam is a VideoSource backed by a local camera via OpenCV. It holds the
// device exclusively until Close.
type Webcam struct {
	mu     sync.Mutex
	cam    *gocv.VideoCapture
	img    gocv.Mat
	small  gocv.Mat
	seq    uint64
	closed bool
}

// OpenWebcam acquires the camera identified by deviceID (0 for the system
// default).
func OpenWebcam(deviceID int) (*Webcam, error) {
	cam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("capture: open camera %d: %w", deviceID, err)
	}
	return &Webcam{
		cam:   cam,
		img:   gocv.NewMat(),
		small: gocv.NewMat(),
	}, nil
}

// Capture grabs the current frame, downsamples it to 320x240 and compresses
// it to JPEG. Returns a nil frame while the device is warming up.
func (w *Webcam) Capture() ([]byte, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, w.seq, fmt.Errorf("capture: camera closed")
	}
	if ok := w.cam.Read(&w.img); !ok || w.img.Empty() {
		return nil, w.seq, nil
	}
	w.seq++

	gocv.Resize(w.img, &w.small, image.Pt(frameWidth, frameHeight), 0, 0, gocv.InterpolationArea)
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.small, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil, w.seq, fmt.Errorf("capture: jpeg encode: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, buf.Len())
	copy(frame, buf.GetBytes())
	return frame, w.seq, nil
}

// Close releases the camera. Safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.img.Close()
	w.small.Close()
	return w.cam.Close()
}

var _ VideoSource = (*Webcam)(nil)

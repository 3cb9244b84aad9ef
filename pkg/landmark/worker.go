package landmark

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"sync"

	"FaceLens/internal/entity"
)

const (
	statusOK    byte = 0
	statusError byte = 1

	// detectAll in the rect count asks the worker to find faces with dlib's frontal detector.
	detectAll uint32 = 0xFFFFFFFF

	shapeSize     = entity.LandmarkCount * 8
	rectSize      = 16
	maxErrorSize  = 64 << 10
	maxFacesFound = 4096
)

// DefaultWorkerCmd hosts the dlib shape predictor. The model path is appended as last argument.
var DefaultWorkerCmd = []string{"python3", "-u", "scripts/landmark_worker.py"}

// Worker talks to the predictor process.
//
// Request:  [len u32][width u32][height u32][pixels][n u32][n x (minX minY maxX maxY) i32]
// Response: [len u32][status u8] then n x 68 x (x y) i32, or [msgLen u32][msg] on error.
//
// With n = 0xFFFFFFFF and no rects the worker detects faces itself and answers
// [status u8][found u32] then found x (rect, 68 x (x y)) i32.
type Worker struct {
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	cmd    *exec.Cmd
	stderr *bytes.Buffer
	mu     sync.Mutex
}

// StartWorker spawns the predictor and waits until it reports the model as loaded.
func StartWorker(command []string, modelPath string) (*Worker, error) {
	if len(command) == 0 {
		command = DefaultWorkerCmd
	}
	args := append(append([]string{}, command[1:]...), modelPath)

	cmd := exec.Command(command[0], args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	// Responses travel over FD 3 so stray prints on stdout can not corrupt the stream.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("landmark worker failed to start: %w", err)
	}
	w.Close()

	worker := &Worker{Stdin: stdin, DataPipe: r, cmd: cmd, stderr: stderr}

	if _, err := worker.readResponse(1); err != nil {
		worker.Close()
		return nil, fmt.Errorf("landmark worker did not load %s: %w (%s)", modelPath, err, stderr.String())
	}

	return worker, nil
}

func (w *Worker) Predict(gray *image.Gray, rects []image.Rectangle) ([][entity.LandmarkCount]image.Point, error) {
	if len(rects) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeRequest(gray, uint32(len(rects)), rects); err != nil {
		return nil, fmt.Errorf("send frame to landmark worker: %w", err)
	}

	reader, err := w.readResponse(1 + len(rects)*shapeSize)
	if err != nil {
		return nil, err
	}

	origin := gray.Bounds().Min
	shapes := make([][entity.LandmarkCount]image.Point, len(rects))
	for i := range shapes {
		if shapes[i], err = readPoints(reader, origin); err != nil {
			return nil, err
		}
	}
	return shapes, nil
}

// Find lets the worker detect faces with dlib's frontal detector and predict their landmarks.
func (w *Worker) Find(gray *image.Gray) ([]entity.Shape, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeRequest(gray, detectAll, nil); err != nil {
		return nil, fmt.Errorf("send frame to landmark worker: %w", err)
	}

	reader, err := w.readResponse(1 + 4 + maxFacesFound*(rectSize+shapeSize))
	if err != nil {
		return nil, err
	}

	var found uint32
	if err := binary.Read(reader, binary.BigEndian, &found); err != nil {
		return nil, fmt.Errorf("short landmark response: %w", err)
	}
	if found > maxFacesFound {
		return nil, fmt.Errorf("landmark worker reported %d faces", found)
	}

	origin := gray.Bounds().Min
	shapes := make([]entity.Shape, found)
	for i := range shapes {
		var rect [4]int32
		if err := binary.Read(reader, binary.BigEndian, &rect); err != nil {
			return nil, fmt.Errorf("short landmark response: %w", err)
		}
		shapes[i].Rect = image.Rect(int(rect[0]), int(rect[1]), int(rect[2]), int(rect[3])).Add(origin)
		if shapes[i].Points, err = readPoints(reader, origin); err != nil {
			return nil, err
		}
	}
	return shapes, nil
}

func (w *Worker) writeRequest(gray *image.Gray, count uint32, rects []image.Rectangle) error {
	bounds := gray.Bounds()
	payload := new(bytes.Buffer)

	binary.Write(payload, binary.BigEndian, uint32(bounds.Dx()))
	binary.Write(payload, binary.BigEndian, uint32(bounds.Dy()))
	payload.Write(packedPixels(gray))
	binary.Write(payload, binary.BigEndian, count)
	for _, r := range rects {
		r = r.Sub(bounds.Min)
		binary.Write(payload, binary.BigEndian, [4]int32{
			int32(r.Min.X), int32(r.Min.Y), int32(r.Max.X), int32(r.Max.Y),
		})
	}

	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(payload.Len())); err != nil {
		return err
	}
	_, err := w.Stdin.Write(payload.Bytes())
	return err
}

// readResponse reads one frame and returns its body after the status byte. limit bounds the
// size of a successful answer; error answers are bounded separately.
func (w *Worker) readResponse(limit int) (*bytes.Reader, error) {
	var size uint32
	if err := binary.Read(w.DataPipe, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.New("empty landmark worker response")
	}
	if bound := max(limit, 1+4+maxErrorSize); int64(size) > int64(bound) {
		return nil, fmt.Errorf("landmark worker response of %d bytes exceeds %d", size, bound)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(w.DataPipe, body); err != nil {
		return nil, err
	}

	reader := bytes.NewReader(body[1:])

	switch body[0] {
	case statusOK:
		if int64(size) > int64(limit) {
			return nil, fmt.Errorf("landmark worker response of %d bytes exceeds %d", size, limit)
		}
		return reader, nil
	case statusError:
		var msgLen uint32
		if err := binary.Read(reader, binary.BigEndian, &msgLen); err != nil {
			return nil, err
		}
		if int(msgLen) > reader.Len() {
			return nil, errors.New("truncated landmark worker error")
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(reader, msg); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("landmark worker error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown landmark worker status %d", body[0])
	}
}

func readPoints(reader io.Reader, origin image.Point) ([entity.LandmarkCount]image.Point, error) {
	var points [entity.LandmarkCount]image.Point
	var raw [entity.LandmarkCount * 2]int32
	if err := binary.Read(reader, binary.BigEndian, &raw); err != nil {
		return points, fmt.Errorf("short landmark response: %w", err)
	}
	for p := range points {
		points[p] = image.Pt(int(raw[p*2]), int(raw[p*2+1])).Add(origin)
	}
	return points, nil
}

func (w *Worker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.cmd != nil {
		return w.cmd.Wait()
	}
	return nil
}

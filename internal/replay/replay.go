// Package replay runs recorded landmark traces through a session so that
// thresholds can be tuned offline.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/palmchef/internal/detector"
	"github.com/ayusman/palmchef/internal/session"
)

// maxLine bounds a single trace line.
const maxLine = 1 << 20

// ErrEmptyTrace is returned when a trace holds no frames.
var ErrEmptyTrace = errors.New("trace has no frames")

// Frame is one trace line: a timestamp in milliseconds and the landmarks
// seen then. No landmarks means no hand.
type Frame struct {
	T         int64              `json:"t"`
	Landmarks []detector.Point3D `json:"landmarks"`
}

// Time returns the frame timestamp.
func (f Frame) Time() time.Time {
	return time.UnixMilli(f.T).UTC()
}

// ReadTrace parses JSON lines. Blank lines are skipped.
func ReadTrace(r io.Reader) ([]Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var frames []Frame
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	if len(frames) == 0 {
		return nil, ErrEmptyTrace
	}
	return frames, nil
}

// Result summarizes a replay.
type Result struct {
	SessionID string
	Frames    int
	Processed int
	Fires     []session.Update
}

// Run feeds frames in order through a new session built from cfg. The
// throttle applies as it would live, so frames closer together than the
// throttle interval are skipped.
func Run(cfg session.Config, frames []Frame, observers ...session.Observer) (Result, error) {
	cfg.Source = session.SourceReplay
	sess, err := session.New(cfg, observers...)
	if err != nil {
		return Result{}, err
	}

	res := Result{SessionID: sess.ID(), Frames: len(frames)}
	for _, f := range frames {
		u, ok := sess.HandleFrame(f.Landmarks, f.Time())
		if !ok {
			continue
		}
		res.Processed++
		if _, fired := u.Fire(); fired {
			res.Fires = append(res.Fires, u)
		}
	}
	return res, nil
}

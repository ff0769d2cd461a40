package watch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// tailInterval is how often the tailer polls the file for new content.
const tailInterval = 250 * time.Millisecond

// Tailer follows an append-only log file and delivers complete lines. It
// survives logrotate's copytruncate: when the file shrinks below the last
// read position it restarts from the beginning.
type Tailer struct {
	path     string
	file     *os.File
	position int64
	lines    chan string
}

// NewTailer opens path and positions at its current end, so only lines
// written after this call are delivered.
func NewTailer(path string) (*Tailer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("seeking to end of log file: %w", err)
	}
	return &Tailer{
		path:     path,
		file:     file,
		position: pos,
		lines:    make(chan string, 64),
	}, nil
}

// Lines starts the poll loop and returns the line channel. The channel
// closes when ctx is canceled; line delivery blocks rather than dropping,
// so a slow consumer backpressures the tailer instead of losing events.
func (t *Tailer) Lines(ctx context.Context) <-chan string {
	go func() {
		defer close(t.lines)
		defer t.file.Close()

		ticker := time.NewTicker(tailInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.poll(ctx); err != nil {
					log.Printf("Tail %s: %v", t.path, err)
				}
			}
		}
	}()
	return t.lines
}

// poll reads everything appended since the last poll and ships complete
// lines. A trailing partial line stays in the file until a later poll sees
// its newline.
func (t *Tailer) poll(ctx context.Context) error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if stat.Size() < t.position {
		// copytruncate rotation
		t.position = 0
	}
	if stat.Size() == t.position {
		return nil
	}
	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		t.position += int64(len(line))

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		select {
		case t.lines <- line:
		case <-ctx.Done():
			return nil
		}
	}
}

// OpenLogFile opens a log file for replay, transparently decompressing
// rotated .gz archives. The caller closes the returned reader.
func OpenLogFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if filepath.Ext(path) != ".gz" {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading gzip header of %s: %w", path, err)
	}
	return &gzipFile{gz: gz, f: f}, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

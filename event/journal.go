package event

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type EventLogData struct {
	Time    int64  `json:"time"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Data    string `json:"data"`
}

const (
	InLogFile  string = "in.log"
	OutLogFile string = "out.log"
)

// Journal appends every consumed and published message to JSON line files.
// A nil Journal records nothing.
type Journal struct {
	dir string
	mu  sync.Mutex
	in  *os.File
	out *os.File
}

func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	in, err := os.OpenFile(filepath.Join(dir, InLogFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	out, err := os.OpenFile(filepath.Join(dir, OutLogFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		in.Close()
		return nil, err
	}
	return &Journal{dir: dir, in: in, out: out}, nil
}

func (j *Journal) In(service string, action string, data []byte) {
	if j != nil {
		j.write(j.in, service, action, data)
	}
}

func (j *Journal) Out(service string, action string, data []byte) {
	if j != nil {
		j.write(j.out, service, action, data)
	}
}

func (j *Journal) write(file *os.File, service string, action string, data []byte) {
	line, _ := json.Marshal(EventLogData{
		Time:    time.Now().UnixMicro(),
		Service: service,
		Action:  action,
		Data:    string(data),
	})

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := file.Write(append(line, '\n')); err != nil {
		log.Printf("event journal write failed: %v", err)
	}
}

// ReplayIn feeds the recorded inbound messages to the listener of their
// queue, in recording order. Queues without a listener are skipped.
func (j *Journal) ReplayIn(listeners map[string]chan Delivery) (int, error) {
	return j.replay(InLogFile, func(data EventLogData) bool {
		ch, ok := listeners[data.Service]
		if ok {
			ch <- Delivery{Queue: data.Service, Action: data.Action, Data: []byte(data.Data)}
		}
		return ok
	})
}

// ReplayOut publishes the recorded outbound messages again. The log is read
// in full first, since a journaling publisher appends to it while resending.
func (j *Journal) ReplayOut(pub Publisher) (int, error) {
	var recorded []EventLogData
	if _, err := j.replay(OutLogFile, func(data EventLogData) bool {
		recorded = append(recorded, data)
		return true
	}); err != nil {
		return 0, err
	}

	for i, data := range recorded {
		if err := pub.Emit(context.Background(), data.Service, data.Action, []byte(data.Data)); err != nil {
			return i, err
		}
	}
	return len(recorded), nil
}

func (j *Journal) replay(name string, fn func(EventLogData) bool) (int, error) {
	file, err := os.Open(filepath.Join(j.dir, name))
	if err != nil {
		return 0, fmt.Errorf("failed opening file: %w", err)
	}
	defer file.Close()

	n := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		data := EventLogData{}
		if err := json.Unmarshal(scanner.Bytes(), &data); err != nil {
			log.Printf("skip journal line: %v", err)
			continue
		}
		if fn(data) {
			n++
		}
	}
	return n, scanner.Err()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	inErr := j.in.Close()
	if err := j.out.Close(); err != nil {
		return err
	}
	return inErr
}

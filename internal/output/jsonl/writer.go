// Package jsonl 实现投影结果的异步 JSONL 导出。
// Write 只投递记录，JSON 编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("writer 已关闭")

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	val  any
	done chan error
}

// Writer 异步 JSONL 写入器
// 单条记录编码或写入失败不会中断后续写入，首个错误在下一次 Flush/Close 时返回
type Writer struct {
	// path 输出文件路径
	path string
	// ch 操作通道
	ch chan op

	closeOnce sync.Once
	closeErr  error
	closed    int32
	sendMu    sync.Mutex
	wg        sync.WaitGroup

	// written 成功写入的记录数
	written int64
	// failed 写入失败的记录数
	failed int64
}

// NewWriter 创建 JSONL 写入器（追加模式）
// 参数 path: 输出文件路径
// 参数 bufferSize: 投递通道容量
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path: path,
		ch:   make(chan op, bufferSize),
	}

	w.wg.Add(1)
	go w.loop(f)

	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Write 异步写入一条记录
func (w *Writer) Write(v any) error {
	return w.send(op{typ: opWrite, val: v})
}

// Flush 将缓冲区写入文件，返回此前累积的首个写入错误
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	done := make(chan error, 1)
	if err := w.send(op{typ: opFlush, done: done}); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	return <-done
}

// Close 关闭写入器（会先 flush）
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		atomic.StoreInt32(&w.closed, 1)
		w.sendMu.Lock()
		defer w.sendMu.Unlock()
		done := make(chan error, 1)
		w.ch <- op{typ: opClose, done: done}
		w.closeErr = <-done
		close(w.ch)
	})
	w.wg.Wait()
	return w.closeErr
}

// Stats 返回成功与失败的记录数
func (w *Writer) Stats() (written, failed int64) {
	return atomic.LoadInt64(&w.written), atomic.LoadInt64(&w.failed)
}

// send 在未关闭时投递操作
func (w *Writer) send(o op) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	if atomic.LoadInt32(&w.closed) == 1 {
		return ErrClosed
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if atomic.LoadInt32(&w.closed) == 1 {
		return ErrClosed
	}
	w.ch <- o
	return nil
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20) // 1MB buffer
	var pending error

	reply := func(err error, done chan error) {
		if pending != nil && err == nil {
			err = pending
		}
		pending = nil
		if done != nil {
			done <- err
		}
	}

	for req := range w.ch {
		switch req.typ {
		case opWrite:
			if err := writeLine(bw, req.val); err != nil {
				atomic.AddInt64(&w.failed, 1)
				if pending == nil {
					pending = err
				}
				continue
			}
			atomic.AddInt64(&w.written, 1)
		case opFlush:
			reply(bw.Flush(), req.done)
		case opClose:
			reply(bw.Flush(), req.done)
			return
		}
	}
}

// writeLine 编码一条记录并追加换行
func writeLine(bw *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码记录失败: %w", err)
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

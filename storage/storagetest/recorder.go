// Package storagetest 提供记录调用并可注入故障的存储包装器
package storagetest

import (
	"context"
	"io"
	"sync"

	"github.com/anoixa/engi-tracker/storage"
)

// Op 存储操作名称
type Op string

const (
	OpPut         Op = "put"
	OpGet         Op = "get"
	OpDelete      Op = "delete"
	OpDeleteBatch Op = "delete_batch"
	OpList        Op = "list"
)

// Call 一次存储调用
type Call struct {
	Op   Op
	Key  string
	Keys []string
	Err  error
}

// FailFunc 返回非 nil 时，调用不会转发到底层存储而直接返回该错误
type FailFunc func(op Op, key string) error

// Recorder 包装 storage.Provider 并按顺序记录每次调用
type Recorder struct {
	storage.Provider

	mu    sync.Mutex
	calls []Call
	fail  FailFunc
}

// New 包装存储
func New(p storage.Provider) *Recorder {
	return &Recorder{Provider: p}
}

// Unwrap 返回被包装的存储
func (r *Recorder) Unwrap() storage.Provider {
	return r.Provider
}

// FailWith 设置故障注入函数
func (r *Recorder) FailWith(fn FailFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fn
}

func (r *Recorder) injected(op Op, key string) error {
	r.mu.Lock()
	fn := r.fail
	r.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(op, key)
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *Recorder) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	err := r.injected(OpPut, key)
	if err == nil {
		err = r.Provider.Put(ctx, key, body, size, opts)
	}
	r.record(Call{Op: OpPut, Key: key, Err: err})
	return err
}

func (r *Recorder) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.injected(OpGet, key)
	if err == nil {
		rc, err = r.Provider.Get(ctx, key)
	}
	r.record(Call{Op: OpGet, Key: key, Err: err})
	return rc, err
}

func (r *Recorder) Delete(ctx context.Context, key string) error {
	err := r.injected(OpDelete, key)
	if err == nil {
		err = r.Provider.Delete(ctx, key)
	}
	r.record(Call{Op: OpDelete, Key: key, Err: err})
	return err
}

func (r *Recorder) DeleteBatch(ctx context.Context, keys []string) error {
	key := ""
	if len(keys) > 0 {
		key = keys[0]
	}
	err := r.injected(OpDeleteBatch, key)
	if err == nil {
		err = r.Provider.DeleteBatch(ctx, keys)
	}
	r.record(Call{Op: OpDeleteBatch, Key: key, Keys: append([]string(nil), keys...), Err: err})
	return err
}

func (r *Recorder) List(ctx context.Context, prefix, token string, maxKeys int) (storage.ListPage, error) {
	var page storage.ListPage
	err := r.injected(OpList, prefix)
	if err == nil {
		page, err = r.Provider.List(ctx, prefix, token, maxKeys)
	}
	r.record(Call{Op: OpList, Key: prefix, Err: err})
	return page, err
}

// Calls 返回全部调用的副本
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf 返回指定操作的调用
func (r *Recorder) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset 清空调用记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

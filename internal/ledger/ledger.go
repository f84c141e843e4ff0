// Package ledger 把调用记录持久化到 SQLite。
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/pkg/logger"
)

// tsLayout 定长格式，保证按字符串排序即按时间排序
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Ledger struct {
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "ledger: mkdir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS receipts (
  id TEXT PRIMARY KEY,
  contract TEXT NOT NULL,
  caller TEXT NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL,
  kind TEXT,
  reason TEXT,
  writes INTEGER NOT NULL DEFAULT 0,
  at TEXT NOT NULL,
  duration_us INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_contract ON receipts(contract, at);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "ledger: migrate")
		}
	}
	return nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record 写入一条调用记录
func (l *Ledger) Record(ctx context.Context, r host.Receipt) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO receipts (id, contract, caller, method, status, kind, reason, writes, at, duration_us)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Contract.Hex(), r.Caller.Hex(), r.Method, string(r.Status),
		r.Kind, r.Reason, r.Writes, r.At.UTC().Format(tsLayout), r.Duration.Microseconds(),
	)
	return errors.Wrap(err, "ledger: insert receipt")
}

// OnReceipt 实现 host.Observer
func (l *Ledger) OnReceipt(r host.Receipt) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.Record(ctx, r); err != nil {
		logger.Errorf("ledger: record %s failed: %v", r.ID, err)
	}
}

// Filter 查询条件
type Filter struct {
	Contract *common.Address
	Status   host.Status
	Limit    int // 默认 100，最大 1000
}

// List 按时间倒序返回记录
func (l *Ledger) List(ctx context.Context, f Filter) ([]host.Receipt, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	q := `SELECT id, contract, caller, method, status, kind, reason, writes, at, duration_us FROM receipts WHERE 1=1`
	var args []any
	if f.Contract != nil {
		q += ` AND contract = ?`
		args = append(args, f.Contract.Hex())
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY at DESC, rowid DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: query receipts")
	}
	defer rows.Close()

	var out []host.Receipt
	for rows.Next() {
		var (
			r                        host.Receipt
			contract, caller, status string
			kind, reason             sql.NullString
			at                       string
			durUS                    int64
		)
		if err := rows.Scan(&r.ID, &contract, &caller, &r.Method, &status, &kind, &reason, &r.Writes, &at, &durUS); err != nil {
			return nil, errors.Wrap(err, "ledger: scan receipt")
		}
		r.Contract = common.HexToAddress(contract)
		r.Caller = common.HexToAddress(caller)
		r.Status = host.Status(status)
		r.Kind = kind.String
		r.Reason = reason.String
		r.Duration = time.Duration(durUS) * time.Microsecond
		if ts, err := time.Parse(tsLayout, at); err == nil {
			r.At = ts
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "ledger: iterate receipts")
}

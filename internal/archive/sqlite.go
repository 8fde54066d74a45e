// Package archive 将行情/结算记录持久化到 SQLite，供回测按 slug / 时间范围回放。
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/updown/internal/domain"
)

// Store SQLite 归档存储
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open 打开（或创建）归档数据库。path 用 ":memory:" 时为内存库（测试用）。
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开归档数据库失败: %w", err)
	}
	// modernc sqlite 在并发写时依赖单连接串行化
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		log: logrus.WithField("component", "archive"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS ticks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT NOT NULL,
  symbol TEXT NOT NULL,
  timeframe TEXT NOT NULL,
  ts TEXT NOT NULL,
  up_cents INTEGER NOT NULL,
  down_cents INTEGER NOT NULL,
  winner TEXT NOT NULL DEFAULT ''
);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_slug_ts ON ticks(slug, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks(symbol, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("迁移失败: %w", err)
		}
	}
	return nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteTick 写入一条行情/结算记录（实现 lifecycle.TickArchiver）
func (s *Store) WriteTick(ctx context.Context, rec domain.TickRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ticks (slug, symbol, timeframe, ts, up_cents, down_cents, winner)
VALUES (?,?,?,?,?,?,?)
`, rec.Slug, rec.Symbol, rec.Timeframe, rec.At.UTC().Format(time.RFC3339Nano),
		rec.UpCents, rec.DownCents, rec.Winner)
	if err != nil {
		return fmt.Errorf("写入 tick 失败: %w", err)
	}
	return nil
}

// TicksBySlug 按 slug 返回一个周期内的全部记录（按时间升序）
func (s *Store) TicksBySlug(ctx context.Context, slug string) ([]domain.TickRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT slug, symbol, timeframe, ts, up_cents, down_cents, winner
FROM ticks
WHERE slug=?
ORDER BY ts ASC, id ASC
`, slug)
	if err != nil {
		return nil, fmt.Errorf("查询 ticks 失败: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

// TicksByRange 按 symbol + 时间范围返回记录（回测回放用，左闭右开）
func (s *Store) TicksByRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.TickRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT slug, symbol, timeframe, ts, up_cents, down_cents, winner
FROM ticks
WHERE symbol=? AND ts>=? AND ts<?
ORDER BY ts ASC, id ASC
`, symbol, from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("查询 ticks 失败: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

// Winners 返回一段时间内各周期的最终赢方（仅结算记录）
func (s *Store) Winners(ctx context.Context, symbol string, from, to time.Time) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT slug, winner
FROM ticks
WHERE symbol=? AND winner!='' AND ts>=? AND ts<?
`, symbol, from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("查询 winners 失败: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var slug, winner string
		if err := rows.Scan(&slug, &winner); err != nil {
			return nil, err
		}
		out[slug] = winner
	}
	return out, rows.Err()
}

func scanTicks(rows *sql.Rows) ([]domain.TickRecord, error) {
	var out []domain.TickRecord
	for rows.Next() {
		var rec domain.TickRecord
		var ts string
		if err := rows.Scan(&rec.Slug, &rec.Symbol, &rec.Timeframe, &ts,
			&rec.UpCents, &rec.DownCents, &rec.Winner); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("解析时间戳失败 %q: %w", ts, err)
		}
		rec.At = at
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Package history 使用 SQLite 持久化投影运行记录。
// 完整结果以 JSON 存储，常用汇总指标单独成列以便列表查询。
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lightning-yield-projector/internal/core/model"
)

var (
	// ErrNotFound 运行记录不存在
	ErrNotFound = errors.New("运行记录不存在")
	// ErrInvalidID 运行 ID 不是合法 UUID
	ErrInvalidID = errors.New("无效的运行 ID")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                          TEXT PRIMARY KEY,
	created_at                  INTEGER NOT NULL,
	policy                      TEXT NOT NULL,
	price_usd                   REAL NOT NULL,
	price_source                TEXT NOT NULL,
	cumulative_eps_usd          REAL NOT NULL,
	cumulative_sats_per_share   REAL NOT NULL,
	cumulative_routing_fees_btc REAL NOT NULL,
	year1_eps_uplift            REAL NOT NULL,
	result_json                 TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_policy_created_at ON runs (policy, created_at DESC);
`

// Summary 运行列表项
type Summary struct {
	ID                       string    `json:"id"`
	CreatedAt                time.Time `json:"created_at"`
	Policy                   string    `json:"policy"`
	PriceUSD                 float64   `json:"price_usd"`
	PriceSource              string    `json:"price_source"`
	CumulativeEpsUSD         float64   `json:"cumulative_eps_usd"`
	CumulativeSatsPerShare   float64   `json:"cumulative_sats_per_share"`
	CumulativeRoutingFeesBTC float64   `json:"cumulative_routing_fees_btc"`
	Year1EpsUplift           float64   `json:"year1_eps_uplift"`
}

// Store SQLite 运行历史
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Open 打开（必要时创建）数据库并建表
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path 不能为空")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("创建历史目录失败: %w", err)
	}

	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	// 单写者
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite 失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save 保存一次运行
// ID 为空时自动分配，CreatedAt 为零值时使用当前时间
func (s *Store) Save(ctx context.Context, run *model.Run) error {
	if run == nil || run.Result == nil {
		return fmt.Errorf("运行结果为空")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	} else if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("编码运行结果失败: %w", err)
	}

	r := run.Result
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (
		   id, created_at, policy, price_usd, price_source,
		   cumulative_eps_usd, cumulative_sats_per_share, cumulative_routing_fees_btc,
		   year1_eps_uplift, result_json
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		toMillis(run.CreatedAt),
		r.Policy().String(),
		r.PriceAtT0,
		run.PriceSource,
		r.CumulativeEpsUSD,
		r.CumulativeSatsPerShare,
		r.CumulativeRoutingFeesBTC,
		r.Year1EpsUplift,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}
	return nil
}

// Get 按 ID 读取完整运行
func (s *Store) Get(ctx context.Context, id string) (*model.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, price_source, result_json FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// Latest 读取指定策略最近一次运行；policy 为空时不限策略
func (s *Store) Latest(ctx context.Context, policy model.CompoundingPolicy) (*model.Run, error) {
	var row *sql.Row
	if policy == "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, created_at, price_source, result_json FROM runs
			 ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, created_at, price_source, result_json FROM runs
			 WHERE policy = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, policy.String())
	}
	return scanRun(row)
}

// List 按时间倒序列出运行汇总
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, policy, price_usd, price_source,
		        cumulative_eps_usd, cumulative_sats_per_share, cumulative_routing_fees_btc, year1_eps_uplift
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行列表失败: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum       Summary
			createdAt int64
		)
		if err := rows.Scan(
			&sum.ID, &createdAt, &sum.Policy, &sum.PriceUSD, &sum.PriceSource,
			&sum.CumulativeEpsUSD, &sum.CumulativeSatsPerShare, &sum.CumulativeRoutingFeesBTC, &sum.Year1EpsUplift,
		); err != nil {
			return nil, fmt.Errorf("读取运行列表失败: %w", err)
		}
		sum.CreatedAt = fromMillis(createdAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历运行列表失败: %w", err)
	}
	return out, nil
}

// scanRun 解析单行运行记录
func scanRun(row *sql.Row) (*model.Run, error) {
	var (
		run       model.Run
		createdAt int64
		payload   string
	)
	if err := row.Scan(&run.ID, &createdAt, &run.PriceSource, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取运行记录失败: %w", err)
	}
	run.CreatedAt = fromMillis(createdAt)

	var result model.ProjectionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("解码运行结果失败: %w", err)
	}
	run.Result = &result
	return &run, nil
}

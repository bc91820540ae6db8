package report

import (
	"context"
	"database/sql"
	"strings"
	"time"

	xerrors "OpenFarm-Chain/internal/errors"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLLedger 把执行台账落到 MySQL，作为降级账户的持久记录。
type MySQLLedger struct {
	db *sql.DB
}

// NewMySQLLedger 创建 MySQL 台账。
func NewMySQLLedger(dsn string) (*MySQLLedger, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	ledger := &MySQLLedger{db: db}
	if err := ledger.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

func (l *MySQLLedger) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS cycle_outcomes (
        id VARCHAR(64) PRIMARY KEY,
        cycle BIGINT UNSIGNED NOT NULL,
        account_index INT NOT NULL,
        address VARCHAR(64) NOT NULL,
        agents BIGINT UNSIGNED NOT NULL DEFAULT 0,
        requests BIGINT UNSIGNED NOT NULL DEFAULT 0,
        txs BIGINT UNSIGNED NOT NULL DEFAULT 0,
        errors BIGINT UNSIGNED NOT NULL DEFAULT 0,
        tx_hashes TEXT,
        completed_at BIGINT NOT NULL,
        INDEX idx_outcome_cycle (cycle),
        INDEX idx_outcome_address (address)
)`

	if _, err := l.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 cycle_outcomes 表失败")
	}
	return nil
}

// Append 插入一条周期结果。
func (l *MySQLLedger) Append(ctx context.Context, outcome *Outcome) error {
	if outcome == nil {
		return nil
	}

	const stmt = `INSERT INTO cycle_outcomes
        (id, cycle, account_index, address, agents, requests, txs, errors, tx_hashes, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.ExecContext(ctx, stmt,
		outcome.ID,
		outcome.Cycle,
		outcome.AccountIndex,
		outcome.Address,
		outcome.Agents,
		outcome.Requests,
		outcome.Txs,
		outcome.Errors,
		strings.Join(outcome.TxHashes, ","),
		outcome.CompletedAt.Unix(),
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入周期台账失败")
	}
	return nil
}

// Close 关闭数据库连接。
func (l *MySQLLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

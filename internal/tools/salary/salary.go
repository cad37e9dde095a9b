// Package salary 在 SQLite 员工表上提供薪资查询工具。
package salary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/tools"
)

const schema = `CREATE TABLE IF NOT EXISTS employee (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	salary REAL NOT NULL
)`

// Employee 是员工表中的一行。
type Employee struct {
	ID     int
	Name   string
	Salary float64
}

// Store 封装员工数据库。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）SQLite 数据库并确保表结构存在。
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置员工数据库路径")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开员工数据库失败")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化员工表失败")
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert 写入或覆盖员工记录。
func (s *Store) Upsert(ctx context.Context, employees ...Employee) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	defer func() { _ = tx.Rollback() }()
	for _, e := range employees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO employee (id, name, salary) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, salary = excluded.salary`,
			e.ID, e.Name, e.Salary); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("写入员工 %d 失败", e.ID))
		}
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交事务失败")
	}
	return nil
}

// ByID 按编号查询薪资。
func (s *Store) ByID(ctx context.Context, id int) (float64, error) {
	return s.lookup(ctx, `SELECT salary FROM employee WHERE id = ?`, id)
}

// ByName 按姓名查询薪资，姓名比较不区分大小写。
func (s *Store) ByName(ctx context.Context, name string) (float64, error) {
	return s.lookup(ctx, `SELECT salary FROM employee WHERE lower(name) = lower(?) ORDER BY id LIMIT 1`, strings.TrimSpace(name))
}

func (s *Store) lookup(ctx context.Context, query string, arg any) (float64, error) {
	var salary float64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&salary)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, xerrors.Newf(xerrors.CodeNotFound, "未找到员工 %v", arg)
	}
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询员工薪资失败")
	}
	return salary, nil
}

// Tools 返回基于 store 的查询工具。
func Tools(store *Store) []tools.Tool {
	return []tools.Tool{
		tools.New(tools.Spec{
			Name:        "calculate_salary_for_id",
			Description: "按员工编号查询薪资",
			Category:    tools.CategoryData,
			Params:      []tools.Param{tools.Int("emp_id", "员工编号，从 1 开始")},
			Result:      tools.NumericResult,
		}, func(ctx context.Context, args tools.Args) (any, error) {
			id := args.Int("emp_id")
			if id < 1 {
				return nil, tools.Failf("员工编号必须大于 0: %d", id)
			}
			return store.ByID(ctx, id)
		}),
		tools.New(tools.Spec{
			Name:        "calculate_salary_for_name",
			Description: "按员工姓名查询薪资",
			Category:    tools.CategoryData,
			Params:      []tools.Param{tools.Text("emp_name", "员工姓名")},
			Result:      tools.NumericResult,
		}, func(ctx context.Context, args tools.Args) (any, error) {
			name := args.String("emp_name")
			if strings.TrimSpace(name) == "" {
				return nil, tools.Failf("员工姓名不能为空")
			}
			return store.ByName(ctx, name)
		}),
	}
}

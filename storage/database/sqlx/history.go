package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core/user"
)

type loginRecordRow struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	Username  string    `db:"username"`
	Status    string    `db:"status"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

func (row loginRecordRow) toRecord() user.LoginRecord {
	return user.LoginRecord{
		ID:        row.ID,
		UserID:    row.UserID,
		Username:  row.Username,
		Status:    row.Status,
		IPAddress: row.IPAddress,
		UserAgent: row.UserAgent,
		CreatedAt: row.CreatedAt,
	}
}

func (repo *userRepository) CreateLoginRecord(ctx context.Context, rec user.LoginRecord) (user.LoginRecord, error) {
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO login_history (user_id, username, status, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.Status, rec.IPAddress, rec.UserAgent, rec.CreatedAt,
	)
	if err != nil {
		return user.LoginRecord{}, errors.Wrap(err, "inserting login record")
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return rec, nil
}

func (repo *userRepository) FilterLoginRecords(ctx context.Context, filter user.HistoryFilter) ([]user.LoginRecord, error) {
	query := "SELECT * FROM login_history"
	var conds []string
	var args []interface{}

	if filter.Username != "" {
		conds = append(conds, "LOWER(username) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Username)+"%")
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []loginRecordRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering login records")
	}
	records := make([]user.LoginRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

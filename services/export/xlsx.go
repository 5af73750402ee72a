// Package exportsvc renders admin exports as XLSX workbooks.
package exportsvc

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/GanpatGang/GanpatStudy/core/user"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func writeSheet(sheet string, headers []interface{}, rows [][]interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, errors.Wrap(err, "writing header row")
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, errors.Wrap(err, "writing row")
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "encoding workbook")
	}
	return buf, nil
}

func Users(users []user.User) (*bytes.Buffer, error) {
	headers := []interface{}{"ID", "Name", "Username", "Email", "Roles", "Active", "Created At", "Last Login"}
	rows := make([][]interface{}, 0, len(users))
	for _, usr := range users {
		active := usr.IsActive != nil && *usr.IsActive
		rows = append(rows, []interface{}{
			usr.ID,
			usr.Name,
			usr.Username,
			usr.Email,
			strings.Join(usr.Roles, ", "),
			active,
			formatTime(usr.CreatedAt),
			formatTime(usr.LastLogin),
		})
	}
	return writeSheet("Users", headers, rows)
}

func LoginHistory(records []user.LoginRecord) (*bytes.Buffer, error) {
	headers := []interface{}{"ID", "Username", "Status", "IP Address", "User Agent", "Time"}
	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []interface{}{
			rec.ID,
			rec.Username,
			rec.Status,
			rec.IPAddress,
			rec.UserAgent,
			formatTime(rec.CreatedAt),
		})
	}
	return writeSheet("Login History", headers, rows)
}

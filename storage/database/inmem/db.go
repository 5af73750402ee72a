// Package inmemdb provides in-memory repositories, used in tests.
package inmemdb

import (
	"sync"

	"github.com/GanpatGang/GanpatStudy/core/user"
)

type DB struct {
	user *userTable
}

type userTable struct {
	mutex   sync.RWMutex
	table   map[string]*user.User
	history []user.LoginRecord
	pkCount int64
}

func NewDB() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
	}
}

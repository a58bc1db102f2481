package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/go-sql-driver/mysql"
)

var errForeignKey = errors.New("foreign key violation")

const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452

	sqliteConstraintFK     = 787
	sqliteConstraintPK     = 1555
	sqliteConstraintUnique = 2067
)

// classify wraps driver errors with the storage sentinels the use cases
// understand. Unrecognised errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", usecase.ErrRecordNotFound, err)
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDupEntry:
			return fmt.Errorf("%w: %w", usecase.ErrDuplicateKey, err)
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return fmt.Errorf("%w: %w", errForeignKey, err)
		}
		return err
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintUnique, sqliteConstraintPK:
			return fmt.Errorf("%w: %w", usecase.ErrDuplicateKey, err)
		case sqliteConstraintFK:
			return fmt.Errorf("%w: %w", errForeignKey, err)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %w", usecase.ErrDuplicateKey, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %w", errForeignKey, err)
	}
	return err
}

// foreignKeyAs reports a foreign key failure as target.
func foreignKeyAs(err, target error) error {
	err = classify(err)
	if errors.Is(err, errForeignKey) {
		return fmt.Errorf("%w: %w", target, err)
	}
	return err
}

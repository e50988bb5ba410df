// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintRepository_ListForAccount(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      map[string]bool
		wantErr   bool
		errMsg    string
	}{
		{
			name: "account with fingerprints",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"value", "banned"}).
					AddRow([]byte("device-a"), false).
					AddRow([]byte("device-b"), true)
				mock.ExpectQuery(`SELECT f.value, f.banned`).
					WithArgs("alice").
					WillReturnRows(rows)
			},
			want: map[string]bool{"device-a": false, "device-b": true},
		},
		{
			name: "account with no fingerprints",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"value", "banned"})
				mock.ExpectQuery(`SELECT f.value, f.banned`).
					WithArgs("alice").
					WillReturnRows(rows)
			},
			want: map[string]bool{},
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT f.value, f.banned`).
					WithArgs("alice").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errMsg:  "connection refused",
		},
		{
			name: "row iteration error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"value", "banned"}).
					AddRow([]byte("device-a"), false).
					RowError(0, errors.New("row iteration error"))
				mock.ExpectQuery(`SELECT f.value, f.banned`).
					WithArgs("alice").
					WillReturnRows(rows)
			},
			wantErr: true,
			errMsg:  "row iteration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewFingerprintRepository(mock)
			got, err := repo.ListForAccount(context.Background(), "alice")

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestFingerprintRepository_GetOrRegister(t *testing.T) {
	tests := []struct {
		name       string
		setupMock  func(mock pgxmock.PgxPoolIface)
		wantID     int64
		wantBanned bool
		wantErr    bool
	}{
		{
			name: "first sight registers with presumed flag",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "banned"}).
					AddRow(int64(7), true)
				mock.ExpectQuery(`INSERT INTO fingerprints`).
					WithArgs([]byte("device-a"), true).
					WillReturnRows(rows)
			},
			wantID:     7,
			wantBanned: true,
		},
		{
			name: "known value returns stored flag",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "banned"}).
					AddRow(int64(7), false)
				mock.ExpectQuery(`INSERT INTO fingerprints`).
					WithArgs([]byte("device-a"), true).
					WillReturnRows(rows)
			},
			wantID:     7,
			wantBanned: false,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO fingerprints`).
					WithArgs([]byte("device-a"), true).
					WillReturnError(errors.New("disk full"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewFingerprintRepository(mock)
			id, banned, err := repo.GetOrRegister(context.Background(), []byte("device-a"), true)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
				assert.Equal(t, tt.wantBanned, banned)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestFingerprintRepository_Associate(t *testing.T) {
	t.Run("successful insert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO account_fingerprints`).
			WithArgs("Alice", int64(7)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewFingerprintRepository(mock)
		err = repo.Associate(context.Background(), "Alice", 7)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("repeat association absorbed", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO account_fingerprints`).
			WithArgs("Alice", int64(7)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		repo := NewFingerprintRepository(mock)
		err = repo.Associate(context.Background(), "Alice", 7)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO account_fingerprints`).
			WithArgs("Alice", int64(7)).
			WillReturnError(errors.New("foreign key violation"))

		repo := NewFingerprintRepository(mock)
		err = repo.Associate(context.Background(), "Alice", 7)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "foreign key violation")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

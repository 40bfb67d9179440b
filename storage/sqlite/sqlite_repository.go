// Package sqlite implements storage.DAO on top of a SQLite database plus a
// plain directory tree for referenced media files. Schema evolution follows
// a numbered-migration model: each call to Open runs any migration past the
// version recorded in schema_info.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Repository implements storage.DAO. dbPath and baseDir are kept alongside
// the open *sql.DB so Backup can copy the database file into a timestamped
// directory under baseDir without reaching back into the caller. Backup
// does not copy the media tree.
type Repository struct {
	db      *sql.DB
	dbPath  string
	baseDir string
	logger  *logrus.Logger

	backupMu        sync.Mutex
	backupsDisabled bool
	maxBackups      int // 0 means unlimited
}

// Open creates (or reuses) a SQLite database at dbPath, migrates it to the
// latest schema, and returns a Repository rooted at baseDir for media
// files. dbPath may be ":memory:" for a throwaway, test-only database.
func Open(dbPath, baseDir string, logger *logrus.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection: sqlite3 serializes writers anyway, and a
	// ":memory:" database does not survive switching connections.
	db.SetMaxOpenConns(1)
	r := &Repository{db: db, dbPath: dbPath, baseDir: baseDir, logger: logger}
	if err := r.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// _____________________________________________________________________________________________________________________
// schema migrations

func (r *Repository) initializeSchema() error {
	version, err := r.getSchemaVersion()
	if err != nil {
		return err
	}
	migrations := r.getMigrations()
	for i := version; i < len(migrations); i++ {
		if err := r.runMigration(migrations[i], i+1); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *Repository) getSchemaVersion() (int, error) {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_info (
			version INTEGER PRIMARY KEY DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return 0, err
	}
	var version int
	if err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_info").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *Repository) runMigration(migration string, version int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_info (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) getMigrations() []string {
	return []string{
		// Migration 1: datasets, users, chats, chat members, messages.
		`
		CREATE TABLE IF NOT EXISTS datasets (
			id TEXT PRIMARY KEY,
			alias TEXT NOT NULL,
			source_type TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
			id INTEGER NOT NULL,
			first_name TEXT,
			last_name TEXT,
			username TEXT,
			phone_number TEXT,
			is_self BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, id)
		);

		CREATE TABLE IF NOT EXISTS chats (
			dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
			id INTEGER NOT NULL,
			name TEXT,
			type TEXT NOT NULL,
			image_path TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, id)
		);

		CREATE TABLE IF NOT EXISTS chat_members (
			dataset_id TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (dataset_id, chat_id, position),
			FOREIGN KEY (dataset_id, chat_id) REFERENCES chats(dataset_id, id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS messages (
			dataset_id TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			internal_id INTEGER NOT NULL,
			source_id INTEGER,
			timestamp_unix INTEGER NOT NULL,
			from_id INTEGER NOT NULL,
			searchable_string TEXT NOT NULL DEFAULT '',
			text_json TEXT NOT NULL DEFAULT '[]',
			typed_json TEXT NOT NULL,
			PRIMARY KEY (dataset_id, chat_id, internal_id),
			FOREIGN KEY (dataset_id, chat_id) REFERENCES chats(dataset_id, id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(dataset_id, chat_id, timestamp_unix, internal_id);
		CREATE INDEX IF NOT EXISTS idx_messages_source_id ON messages(dataset_id, chat_id, source_id);
		`,
	}
}

// _____________________________________________________________________________________________________________________
// reads

func (r *Repository) Datasets(ctx context.Context) ([]model.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, alias, source_type FROM datasets ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Dataset
	for rows.Next() {
		var idStr, alias, sourceType string
		if err := rows.Scan(&idStr, &alias, &sourceType); err != nil {
			return nil, err
		}
		id, err := parseDatasetID(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Dataset{ID: id, Alias: alias, SourceType: sourceType})
	}
	return out, rows.Err()
}

func (r *Repository) Myself(ctx context.Context, datasetID model.DatasetID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, username, phone_number, is_self
		FROM users WHERE dataset_id = ? AND is_self = 1
	`, datasetID.String())
	u, err := scanUser(row, datasetID)
	if err == sql.ErrNoRows {
		return model.User{}, fmt.Errorf("dataset %s has no self user", datasetID)
	}
	return u, err
}

func (r *Repository) Users(ctx context.Context, datasetID model.DatasetID) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, username, phone_number, is_self
		FROM users WHERE dataset_id = ? ORDER BY is_self DESC, id ASC
	`, datasetID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows, datasetID)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) Chats(ctx context.Context, datasetID model.DatasetID) ([]model.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, image_path, message_count
		FROM chats WHERE dataset_id = ? ORDER BY id ASC
	`, datasetID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chat
	for rows.Next() {
		var c model.Chat
		c.DatasetID = datasetID
		var chatType string
		if err := rows.Scan(&c.ID, &c.Name, &chatType, &c.ImagePath, &c.MessageCount); err != nil {
			return nil, err
		}
		c.Type = model.ChatType(chatType)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		members, err := r.chatMembers(ctx, datasetID, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].MemberIDs = members
	}
	return out, nil
}

func (r *Repository) chatMembers(ctx context.Context, datasetID model.DatasetID, chatID model.ChatID) ([]model.UserID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM chat_members WHERE dataset_id = ? AND chat_id = ? ORDER BY position ASC
	`, datasetID.String(), chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserID
	for rows.Next() {
		var id model.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repository) DatasetRoot(_ context.Context, datasetID model.DatasetID) (string, error) {
	return filepath.Join(r.baseDir, datasetID.String()), nil
}

func (r *Repository) ScrollMessages(ctx context.Context, chat storage.ChatRef, offset, limit int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ?
		ORDER BY timestamp_unix ASC, internal_id ASC
		LIMIT ? OFFSET ?
	`, chat.DatasetID.String(), chat.ChatID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *Repository) LastMessages(ctx context.Context, chat storage.ChatRef, limit int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ?
		ORDER BY timestamp_unix DESC, internal_id DESC
		LIMIT ?
	`, chat.DatasetID.String(), chat.ChatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (r *Repository) MessagesBefore(ctx context.Context, chat storage.ChatRef, anchor model.Message, limit int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ? AND internal_id <= ?
		ORDER BY internal_id DESC
		LIMIT ?
	`, chat.DatasetID.String(), chat.ChatID, anchor.InternalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (r *Repository) MessagesAfter(ctx context.Context, chat storage.ChatRef, anchor model.Message, limit int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ? AND internal_id >= ?
		ORDER BY internal_id ASC
		LIMIT ?
	`, chat.DatasetID.String(), chat.ChatID, anchor.InternalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *Repository) MessagesBetween(ctx context.Context, chat storage.ChatRef, m1, m2 model.Message) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ? AND internal_id BETWEEN ? AND ?
		ORDER BY internal_id ASC
	`, chat.DatasetID.String(), chat.ChatID, m1.InternalID, m2.InternalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *Repository) CountMessagesBetween(ctx context.Context, chat storage.ChatRef, m1, m2 model.Message) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE dataset_id = ? AND chat_id = ? AND internal_id > ? AND internal_id < ?
	`, chat.DatasetID.String(), chat.ChatID, m1.InternalID, m2.InternalID).Scan(&count)
	return count, err
}

func (r *Repository) MessageOption(ctx context.Context, chat storage.ChatRef, sourceID model.SourceID) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ? AND source_id = ?
		LIMIT 1
	`, chat.DatasetID.String(), chat.ChatID, sourceID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (r *Repository) MessageOptionByInternalID(ctx context.Context, chat storage.ChatRef, id model.InternalID) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json
		FROM messages WHERE dataset_id = ? AND chat_id = ? AND internal_id = ?
		LIMIT 1
	`, chat.DatasetID.String(), chat.ChatID, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// _____________________________________________________________________________________________________________________
// writes

func (r *Repository) InsertDataset(ctx context.Context, ds model.Dataset) error {
	root, _ := r.DatasetRoot(ctx, ds.ID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating dataset root %s: %w", root, err)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO datasets (id, alias, source_type) VALUES (?, ?, ?)`,
		ds.ID.String(), ds.Alias, ds.SourceType)
	return err
}

func (r *Repository) InsertUser(ctx context.Context, datasetID model.DatasetID, user model.User, isSelf bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (dataset_id, id, first_name, last_name, username, phone_number, is_self)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, datasetID.String(), user.ID, user.FirstName, user.LastName, user.Username, user.PhoneNumber, isSelf)
	return err
}

func (r *Repository) InsertChat(ctx context.Context, srcRoot string, chat model.Chat) error {
	destRoot, _ := r.DatasetRoot(ctx, chat.DatasetID)
	if chat.ImagePath != nil {
		if err := copyFile(srcRoot, destRoot, *chat.ImagePath); err != nil {
			return fmt.Errorf("copying chat avatar: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (dataset_id, id, name, type, image_path, message_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chat.DatasetID.String(), chat.ID, chat.Name, string(chat.Type), chat.ImagePath, chat.MessageCount); err != nil {
		return err
	}
	for i, memberID := range chat.MemberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_members (dataset_id, chat_id, position, user_id) VALUES (?, ?, ?, ?)
		`, chat.DatasetID.String(), chat.ID, i, memberID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) InsertMessages(ctx context.Context, srcRoot string, chat storage.ChatRef, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	destRoot, _ := r.DatasetRoot(ctx, chat.DatasetID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var nextID int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(internal_id), -1) + 1 FROM messages WHERE dataset_id = ? AND chat_id = ?
	`, chat.DatasetID.String(), chat.ChatID).Scan(&nextID); err != nil {
		return err
	}

	for _, m := range msgs {
		if err := copyMessageFiles(srcRoot, destRoot, m); err != nil {
			return fmt.Errorf("copying message attachment: %w", err)
		}

		textJSON, err := encodeText(m.Text)
		if err != nil {
			return err
		}
		typedJSON, err := encodeTyped(m.Typed)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (dataset_id, chat_id, internal_id, source_id, timestamp_unix, from_id, searchable_string, text_json, typed_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, chat.DatasetID.String(), chat.ChatID, nextID, m.SourceID, m.Timestamp.Unix(), m.FromID, m.SearchableString, string(textJSON), string(typedJSON)); err != nil {
			return err
		}
		nextID++
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chats SET message_count = message_count + ? WHERE dataset_id = ? AND id = ?
	`, len(msgs), chat.DatasetID.String(), chat.ChatID); err != nil {
		return err
	}
	return tx.Commit()
}

// _____________________________________________________________________________________________________________________
// backups

func (r *Repository) Backup(ctx context.Context) error {
	r.backupMu.Lock()
	disabled := r.backupsDisabled
	r.backupMu.Unlock()
	if disabled {
		return nil
	}
	if r.dbPath == ":memory:" {
		return nil
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	backupDir := filepath.Join(r.baseDir, "backups", stamp)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := copyFileAbs(r.dbPath, filepath.Join(backupDir, filepath.Base(r.dbPath))); err != nil {
		return fmt.Errorf("backing up database file: %w", err)
	}
	if r.logger != nil {
		r.logger.WithField("backup_dir", backupDir).Info("merge engine backup created")
	}
	return r.pruneBackups()
}

func (r *Repository) DisableBackups() {
	r.backupMu.Lock()
	defer r.backupMu.Unlock()
	r.backupsDisabled = true
}

func (r *Repository) EnableBackups() {
	r.backupMu.Lock()
	defer r.backupMu.Unlock()
	r.backupsDisabled = false
}

// SetBackupRetention bounds how many timestamped backup directories Backup
// keeps; 0 (the default) never prunes. Backup directory names are
// lexically sortable timestamps, so the oldest are simply the first N
// alphabetically after removing the newest maxBackups.
func (r *Repository) SetBackupRetention(maxBackups int) {
	r.backupMu.Lock()
	defer r.backupMu.Unlock()
	r.maxBackups = maxBackups
}

func (r *Repository) pruneBackups() error {
	r.backupMu.Lock()
	maxBackups := r.maxBackups
	r.backupMu.Unlock()
	if maxBackups <= 0 {
		return nil
	}

	backupsRoot := filepath.Join(r.baseDir, "backups")
	entries, err := os.ReadDir(backupsRoot)
	if err != nil {
		return fmt.Errorf("listing backups: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for len(names) > maxBackups {
		stale := filepath.Join(backupsRoot, names[0])
		if err := os.RemoveAll(stale); err != nil {
			return fmt.Errorf("pruning stale backup %s: %w", stale, err)
		}
		names = names[1:]
	}
	return nil
}

// _____________________________________________________________________________________________________________________
// scanning and file helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, datasetID model.DatasetID) (model.User, error) {
	var u model.User
	u.DatasetID = datasetID
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.PhoneNumber, &u.IsSelf); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var out []model.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row rowScanner) (*model.Message, error) {
	m, err := scanMessageRow(row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessageRow(row rowScanner) (model.Message, error) {
	var m model.Message
	var sourceID sql.NullInt64
	var timestampUnix int64
	var textJSON, typedJSON string

	if err := row.Scan(&m.InternalID, &sourceID, &timestampUnix, &m.FromID, &m.SearchableString, &textJSON, &typedJSON); err != nil {
		return model.Message{}, err
	}
	if sourceID.Valid {
		sid := model.SourceID(sourceID.Int64)
		m.SourceID = &sid
	}
	m.Timestamp = unixTime(timestampUnix)

	text, err := decodeText([]byte(textJSON))
	if err != nil {
		return model.Message{}, err
	}
	m.Text = text

	typed, err := decodeTyped([]byte(typedJSON))
	if err != nil {
		return model.Message{}, err
	}
	m.Typed = typed

	return m, nil
}

func reverse(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func parseDatasetID(s string) (model.DatasetID, error) {
	id, err := model.ParseDatasetID(s)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("parsing dataset id %q: %w", s, err)
	}
	return id, nil
}

// copyMessageFiles copies every file a message references (content path,
// thumbnail, vcard, avatar update) from srcRoot into destRoot, preserving
// the relative path.
func copyMessageFiles(srcRoot, destRoot string, m model.Message) error {
	path, thumb, ok := model.ContentPaths(m.Typed)
	if !ok {
		return nil
	}
	if path != nil {
		if err := copyFile(srcRoot, destRoot, *path); err != nil {
			return err
		}
	}
	if thumb != nil {
		if err := copyFile(srcRoot, destRoot, *thumb); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies srcRoot/relPath to destRoot/relPath, creating directories
// as needed. Missing source files are not an error: spec §4.3's new-content
// rule means a referenced file may legitimately not exist yet.
func copyFile(srcRoot, destRoot, relPath string) error {
	return copyFileAbs(filepath.Join(srcRoot, relPath), filepath.Join(destRoot, relPath))
}

// copyFileAbs always overwrites dest rather than skipping when it already
// exists. Rerunning a merge still produces identical bytes at dest, so a
// prior partial copy can't leave it stuck half-written.
func copyFileAbs(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

var _ storage.DAO = (*Repository)(nil)

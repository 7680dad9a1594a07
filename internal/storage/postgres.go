package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Connect establishes the connection and bootstraps the schema.
func (p *PostgresStore) Connect(connectionString string) error {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	p.db = db

	if err := p.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %v", err)
	}

	log.Println("Connected to PostgreSQL successfully")
	return nil
}

// Ping checks database liveness for health endpoints.
func (p *PostgresStore) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS files (
        id UUID PRIMARY KEY,
        share_id VARCHAR(12) UNIQUE NOT NULL,
        user_id VARCHAR(255) NOT NULL,
        filename VARCHAR(255) NOT NULL,
        size BIGINT NOT NULL,
        mime_type VARCHAR(100) NOT NULL,
        upload_status VARCHAR(20) NOT NULL DEFAULT 'uploading',
        encrypted_key TEXT NOT NULL DEFAULT '',
        storage_key VARCHAR(500) NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        expires_at TIMESTAMPTZ NOT NULL,
        max_downloads INT NOT NULL,
        download_count INT NOT NULL DEFAULT 0,
        is_invalidated BOOLEAN NOT NULL DEFAULT false,
        blocks_downloads BOOLEAN NOT NULL DEFAULT false,
        blocks_requests BOOLEAN NOT NULL DEFAULT false
    );

    CREATE TABLE IF NOT EXISTS upload_sessions (
        session_key VARCHAR(128) PRIMARY KEY,
        file_id UUID NOT NULL REFERENCES files(id),
        chunk_size BIGINT NOT NULL,
        total_chunks INT NOT NULL,
        status VARCHAR(20) NOT NULL DEFAULT 'active',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        expires_at TIMESTAMPTZ NOT NULL
    );

    CREATE TABLE IF NOT EXISTS upload_chunks (
        session_key VARCHAR(128) NOT NULL REFERENCES upload_sessions(session_key),
        chunk_index INT NOT NULL,
        digest CHAR(64) NOT NULL,
        received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (session_key, chunk_index)
    );

    CREATE TABLE IF NOT EXISTS access_requests (
        request_id VARCHAR(12) PRIMARY KEY,
        file_id UUID NOT NULL REFERENCES files(id),
        reason VARCHAR(500) NOT NULL DEFAULT '',
        status VARCHAR(20) NOT NULL DEFAULT 'pending',
        ip_hash CHAR(64) NOT NULL,
        encrypted_key TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        approved_at TIMESTAMPTZ,
        rejected_at TIMESTAMPTZ
    );
    `
	if _, err := p.db.Exec(query); err != nil {
		return err
	}

	indexQuery := `
    CREATE INDEX IF NOT EXISTS idx_files_user_id ON files(user_id);
    CREATE INDEX IF NOT EXISTS idx_files_expires_at ON files(expires_at);
    CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON upload_sessions(expires_at);
    CREATE INDEX IF NOT EXISTS idx_requests_file_id ON access_requests(file_id);
    `
	_, err := p.db.Exec(indexQuery)
	return err
}

const fileColumns = `id, share_id, user_id, filename, size, mime_type, upload_status,
    encrypted_key, storage_key, created_at, expires_at, max_downloads, download_count,
    is_invalidated, blocks_downloads, blocks_requests`

func scanFile(row interface{ Scan(...interface{}) error }) (models.File, error) {
	var f models.File
	err := row.Scan(
		&f.ID,
		&f.ShareID,
		&f.UserID,
		&f.Filename,
		&f.Size,
		&f.MimeType,
		&f.UploadStatus,
		&f.EncryptedKey,
		&f.StorageKey,
		&f.CreatedAt,
		&f.ExpiresAt,
		&f.MaxDownloads,
		&f.DownloadCount,
		&f.IsInvalidated,
		&f.BlocksDownloads,
		&f.BlocksRequests,
	)
	return f, err
}

func (p *PostgresStore) CreateFile(f models.File) error {
	query := `
    INSERT INTO files (id, share_id, user_id, filename, size, mime_type, upload_status,
        encrypted_key, storage_key, created_at, expires_at, max_downloads)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := p.db.Exec(query,
		f.ID,
		f.ShareID,
		f.UserID,
		f.Filename,
		f.Size,
		f.MimeType,
		f.UploadStatus,
		f.EncryptedKey,
		f.StorageKey,
		f.CreatedAt,
		f.ExpiresAt,
		f.MaxDownloads,
	)
	return err
}

func (p *PostgresStore) GetFile(fileID string) (models.File, bool) {
	f, err := scanFile(p.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error getting file: %v", err)
		}
		return models.File{}, false
	}
	return f, true
}

func (p *PostgresStore) GetFileByShareID(shareID string) (models.File, bool) {
	f, err := scanFile(p.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE share_id = $1`, shareID))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error getting file by share id: %v", err)
		}
		return models.File{}, false
	}
	return f, true
}

// CompleteFile stores the escrowed key and the assembled object's key, and
// marks the upload completed. Called only after the ciphertext is durable.
func (p *PostgresStore) CompleteFile(fileID, encryptedKey, storageKey string) error {
	query := `
    UPDATE files SET encrypted_key = $2, storage_key = $3, upload_status = $4
    WHERE id = $1
    `
	_, err := p.db.Exec(query, fileID, encryptedKey, storageKey, models.FileCompleted)
	return err
}

func (p *PostgresStore) SetFileStatus(fileID, status string) error {
	_, err := p.db.Exec(`UPDATE files SET upload_status = $2 WHERE id = $1`, fileID, status)
	return err
}

func (p *PostgresStore) UpdateFileFlags(fileID string, invalidated, blocksDownloads, blocksRequests *bool) (models.File, bool) {
	query := `
    UPDATE files SET
        is_invalidated = COALESCE($2, is_invalidated),
        blocks_downloads = COALESCE($3, blocks_downloads),
        blocks_requests = COALESCE($4, blocks_requests)
    WHERE id = $1
    RETURNING ` + fileColumns
	f, err := scanFile(p.db.QueryRow(query, fileID, invalidated, blocksDownloads, blocksRequests))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error updating file flags: %v", err)
		}
		return models.File{}, false
	}
	return f, true
}

// IncrementDownloadCount is the single compare-and-increment point: two
// concurrent downloads at the limit boundary cannot both succeed.
func (p *PostgresStore) IncrementDownloadCount(fileID string) (bool, error) {
	result, err := p.db.Exec(
		`UPDATE files SET download_count = download_count + 1
         WHERE id = $1 AND download_count < max_downloads`,
		fileID,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (p *PostgresStore) ListUserFiles(userID string, limit, offset int) ([]models.File, error) {
	rows, err := p.db.Query(
		`SELECT `+fileColumns+` FROM files
         WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if cerr := rows.Close(); cerr != nil {
			log.Printf("Error closing rows: %v", cerr)
		}
	}(rows)

	var files []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (p *PostgresStore) CountUserFiles(userID string) (int64, error) {
	var count int64
	err := p.db.QueryRow(`SELECT COUNT(*) FROM files WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (p *PostgresStore) CountRequests(fileID string) (models.FileCounts, error) {
	var counts models.FileCounts
	err := p.db.QueryRow(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'pending')
         FROM access_requests WHERE file_id = $1`,
		fileID,
	).Scan(&counts.Requests, &counts.PendingRequests)
	return counts, err
}

func (p *PostgresStore) ListExpiredFiles(now time.Time) ([]models.File, error) {
	rows, err := p.db.Query(
		`SELECT `+fileColumns+` FROM files
         WHERE expires_at < $1 AND storage_key <> ''
         AND (blocks_requests = false OR blocks_downloads = false)`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteUserFiles removes every row belonging to a user and returns the
// files so callers can clean up their storage objects.
func (p *PostgresStore) DeleteUserFiles(userID string) ([]models.File, error) {
	rows, err := p.db.Query(`SELECT `+fileColumns+` FROM files WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, f := range files {
		if _, err := p.db.Exec(`DELETE FROM access_requests WHERE file_id = $1`, f.ID); err != nil {
			return nil, err
		}
		if _, err := p.db.Exec(
			`DELETE FROM upload_chunks WHERE session_key IN
             (SELECT session_key FROM upload_sessions WHERE file_id = $1)`, f.ID); err != nil {
			return nil, err
		}
		if _, err := p.db.Exec(`DELETE FROM upload_sessions WHERE file_id = $1`, f.ID); err != nil {
			return nil, err
		}
		if _, err := p.db.Exec(`DELETE FROM files WHERE id = $1`, f.ID); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (p *PostgresStore) CreateSession(s models.UploadSession) error {
	query := `
    INSERT INTO upload_sessions (session_key, file_id, chunk_size, total_chunks, status, created_at, expires_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := p.db.Exec(query,
		s.SessionKey,
		s.FileID,
		s.ChunkSize,
		s.TotalChunks,
		s.Status,
		s.CreatedAt,
		s.ExpiresAt,
	)
	return err
}

func (p *PostgresStore) GetSession(sessionKey string) (models.UploadSession, bool) {
	var s models.UploadSession
	err := p.db.QueryRow(
		`SELECT session_key, file_id, chunk_size, total_chunks, status, created_at, expires_at
         FROM upload_sessions WHERE session_key = $1`,
		sessionKey,
	).Scan(&s.SessionKey, &s.FileID, &s.ChunkSize, &s.TotalChunks, &s.Status, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error getting session: %v", err)
		}
		return models.UploadSession{}, false
	}

	s.ChunkDigests = make(map[int]string)
	rows, err := p.db.Query(
		`SELECT chunk_index, digest FROM upload_chunks WHERE session_key = $1`,
		sessionKey,
	)
	if err != nil {
		log.Printf("Error loading chunk digests: %v", err)
		return models.UploadSession{}, false
	}
	defer rows.Close()
	for rows.Next() {
		var index int
		var digest string
		if err := rows.Scan(&index, &digest); err != nil {
			log.Printf("Error scanning chunk row: %v", err)
			continue
		}
		s.ChunkDigests[index] = digest
	}
	return s, true
}

func (p *PostgresStore) RecordChunk(sessionKey string, chunkIndex int, digest string) (string, bool, error) {
	result, err := p.db.Exec(
		`INSERT INTO upload_chunks (session_key, chunk_index, digest)
         VALUES ($1, $2, $3)
         ON CONFLICT (session_key, chunk_index) DO NOTHING`,
		sessionKey, chunkIndex, digest,
	)
	if err != nil {
		return "", false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if affected > 0 {
		return digest, true, nil
	}

	var existing string
	err = p.db.QueryRow(
		`SELECT digest FROM upload_chunks WHERE session_key = $1 AND chunk_index = $2`,
		sessionKey, chunkIndex,
	).Scan(&existing)
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (p *PostgresStore) FinishSession(sessionKey, status string) (bool, error) {
	result, err := p.db.Exec(
		`UPDATE upload_sessions SET status = $2
         WHERE session_key = $1 AND status = $3`,
		sessionKey, status, models.SessionActive,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (p *PostgresStore) ListLapsedSessions(now time.Time) ([]models.UploadSession, error) {
	rows, err := p.db.Query(
		`SELECT session_key, file_id, chunk_size, total_chunks, status, created_at, expires_at
         FROM upload_sessions WHERE status = $1 AND expires_at < $2`,
		models.SessionActive, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.UploadSession
	for rows.Next() {
		var s models.UploadSession
		if err := rows.Scan(&s.SessionKey, &s.FileID, &s.ChunkSize, &s.TotalChunks, &s.Status, &s.CreatedAt, &s.ExpiresAt); err != nil {
			log.Printf("Error scanning session row: %v", err)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (p *PostgresStore) CreateRequest(r models.AccessRequest) error {
	query := `
    INSERT INTO access_requests (request_id, file_id, reason, status, ip_hash, created_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := p.db.Exec(query,
		r.RequestID,
		r.FileID,
		r.Reason,
		r.Status,
		r.IPHash,
		r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetRequest(requestID string) (models.AccessRequest, bool) {
	r, err := p.scanRequest(p.db.QueryRow(
		requestSelect+` WHERE request_id = $1`, requestID,
	))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error getting request: %v", err)
		}
		return models.AccessRequest{}, false
	}
	return r, true
}

func (p *PostgresStore) FindPendingRequest(fileID, ipHash string) (models.AccessRequest, bool) {
	r, err := p.scanRequest(p.db.QueryRow(
		requestSelect+` WHERE file_id = $1 AND ip_hash = $2 AND status = $3
         ORDER BY created_at DESC LIMIT 1`,
		fileID, ipHash, models.RequestPending,
	))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error finding pending request: %v", err)
		}
		return models.AccessRequest{}, false
	}
	return r, true
}

func (p *PostgresStore) SaveRequest(r models.AccessRequest) error {
	query := `
    UPDATE access_requests SET
        reason = $2,
        status = $3,
        encrypted_key = $4,
        approved_at = $5,
        rejected_at = $6
    WHERE request_id = $1
    `
	_, err := p.db.Exec(query,
		r.RequestID,
		r.Reason,
		r.Status,
		r.EncryptedKey,
		r.ApprovedAt,
		r.RejectedAt,
	)
	return err
}

func (p *PostgresStore) ListFileRequests(fileID string) ([]models.AccessRequest, error) {
	rows, err := p.db.Query(
		requestSelect+` WHERE file_id = $1 ORDER BY created_at DESC`, fileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.AccessRequest
	for rows.Next() {
		r, err := p.scanRequest(rows)
		if err != nil {
			log.Printf("Error scanning request row: %v", err)
			continue
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

const requestSelect = `SELECT request_id, file_id, reason, status, ip_hash, encrypted_key,
    created_at, approved_at, rejected_at FROM access_requests`

func (p *PostgresStore) scanRequest(row interface{ Scan(...interface{}) error }) (models.AccessRequest, error) {
	var r models.AccessRequest
	err := row.Scan(
		&r.RequestID,
		&r.FileID,
		&r.Reason,
		&r.Status,
		&r.IPHash,
		&r.EncryptedKey,
		&r.CreatedAt,
		&r.ApprovedAt,
		&r.RejectedAt,
	)
	return r, err
}

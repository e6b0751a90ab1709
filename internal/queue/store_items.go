package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, station_id, title, start_time, end_time, status, output_path, format, bitrate_kbps, playlist_json, stream_file, final_file, total_segments, downloaded_segments, failed_segments, total_bytes, reason_code, error_message, metadata_json, progress_stage, progress_percent, progress_message, needs_review, review_reason, created_at, updated_at"

// NewRecording inserts a pending recording job for the given program window.
func (s *Store) NewRecording(ctx context.Context, stationID, title string, start, end time.Time, outputPath, format string, bitrateKbps int, metadataJSON string) (*Item, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            station_id, title, start_time, end_time, status, output_path,
            format, bitrate_kbps, metadata_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stationID,
		title,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		StatusPending,
		outputPath,
		format,
		bitrateKbps,
		nullableString(metadataJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID loads a single item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// Update persists all mutable fields of the item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("nil item")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET
            station_id = ?, title = ?, start_time = ?, end_time = ?, status = ?,
            output_path = ?, format = ?, bitrate_kbps = ?, playlist_json = ?,
            stream_file = ?, final_file = ?, total_segments = ?,
            downloaded_segments = ?, failed_segments = ?, total_bytes = ?,
            reason_code = ?, error_message = ?, metadata_json = ?,
            progress_stage = ?, progress_percent = ?, progress_message = ?,
            needs_review = ?, review_reason = ?, updated_at = ?
        WHERE id = ?`,
		item.StationID,
		item.Title,
		item.StartTime.UTC().Format(time.RFC3339),
		item.EndTime.UTC().Format(time.RFC3339),
		item.Status,
		item.OutputPath,
		item.Format,
		item.BitrateKbps,
		nullableString(item.PlaylistJSON),
		nullableString(item.StreamFile),
		nullableString(item.FinalFile),
		item.TotalSegments,
		item.DownloadedSegments,
		item.FailedSegments,
		item.TotalBytes,
		nullableString(item.ReasonCode),
		nullableString(item.ErrorMessage),
		nullableString(item.MetadataJSON),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		boolToInt(item.NeedsReview),
		nullableString(item.ReviewReason),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

// List returns items ordered by creation, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses returns the oldest item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = status
	}
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY created_at ASC, id ASC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next item: %w", err)
	}
	return item, nil
}

// Remove deletes an item by ID, returning whether a row was removed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearCompleted deletes all completed items.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed deletes all failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every queue item.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		stationID       string
		title           sql.NullString
		startRaw        string
		endRaw          string
		statusStr       string
		outputPath      sql.NullString
		format          sql.NullString
		bitrate         sql.NullInt64
		playlistJSON    sql.NullString
		streamFile      sql.NullString
		finalFile       sql.NullString
		totalSegments   sql.NullInt64
		downloaded      sql.NullInt64
		failed          sql.NullInt64
		totalBytes      sql.NullInt64
		reasonCode      sql.NullString
		errorMessage    sql.NullString
		metadata        sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		needsReview     sql.NullInt64
		reviewReason    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&stationID,
		&title,
		&startRaw,
		&endRaw,
		&statusStr,
		&outputPath,
		&format,
		&bitrate,
		&playlistJSON,
		&streamFile,
		&finalFile,
		&totalSegments,
		&downloaded,
		&failed,
		&totalBytes,
		&reasonCode,
		&errorMessage,
		&metadata,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&needsReview,
		&reviewReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                 id,
		StationID:          stationID,
		Title:              title.String,
		Status:             Status(statusStr),
		OutputPath:         outputPath.String,
		Format:             format.String,
		BitrateKbps:        int(bitrate.Int64),
		PlaylistJSON:       playlistJSON.String,
		StreamFile:         streamFile.String,
		FinalFile:          finalFile.String,
		TotalSegments:      int(totalSegments.Int64),
		DownloadedSegments: int(downloaded.Int64),
		FailedSegments:     int(failed.Int64),
		TotalBytes:         totalBytes.Int64,
		ReasonCode:         reasonCode.String,
		ErrorMessage:       errorMessage.String,
		MetadataJSON:       metadata.String,
		ProgressStage:      progressStage.String,
		ProgressPercent:    progressPercent.Float64,
		ProgressMessage:    progressMessage.String,
		NeedsReview:        needsReview.Int64 != 0,
		ReviewReason:       reviewReason.String,
	}
	item.StartTime = parseStoredTime(startRaw)
	item.EndTime = parseStoredTime(endRaw)
	item.CreatedAt = parseStoredTime(createdRaw.String)
	item.UpdatedAt = parseStoredTime(updatedRaw.String)
	return item, nil
}

func parseStoredTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

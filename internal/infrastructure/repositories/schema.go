package repositories

import (
	"database/sql"
	"fmt"
)

// InitializeDatabase створює таблиці сховища документів та тригери
// потоку змін. Кожна вставка чи оновлення у відстежуваній таблиці
// публікує повний документ у канал document_changes через pg_notify.
func InitializeDatabase(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY,
			alert_type TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			location JSONB NOT NULL,
			drone_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			response INT NOT NULL DEFAULT 0,
			image_received INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			actions JSONB,
			description TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS alerts_created_at_idx
		ON alerts (created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alerts index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processing_tasks (
			id UUID PRIMARY KEY,
			app_id TEXT NOT NULL,
			drone_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			input_data JSONB,
			priority INT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create processing_tasks table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS processing_tasks_drone_status_idx
		ON processing_tasks (drone_id, status)
	`)
	if err != nil {
		return fmt.Errorf("failed to create processing_tasks index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processing_results (
			id UUID PRIMARY KEY,
			task_id UUID NOT NULL REFERENCES processing_tasks(id),
			drone_id TEXT NOT NULL,
			result_data JSONB,
			processing_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create processing_results table: %w", err)
	}

	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS processing_results_task_idx
		ON processing_results (task_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create processing_results index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_images (
			id UUID PRIMARY KEY,
			found BOOLEAN NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			drone_id TEXT NOT NULL,
			actual_image_key TEXT NOT NULL DEFAULT '',
			matched_frame_key TEXT NOT NULL DEFAULT '',
			location JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alert_images table: %w", err)
	}

	// Тригерна функція публікує зміну разом з повним документом.
	// pg_notify обмежує навантаження 8000 байтами, тому бінарні дані
	// зображень живуть в об'єктному сховищі, а не у документах.
	_, err = db.Exec(`
		CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
		DECLARE
			payload TEXT;
		BEGIN
			payload = json_build_object(
				'operation', lower(TG_OP),
				'collection', TG_TABLE_NAME,
				'document_key', NEW.id::text,
				'full_document', row_to_json(NEW),
				'timestamp', now()
			)::text;
			PERFORM pg_notify('document_changes', payload);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	for _, table := range []string{"alerts", "processing_tasks", "processing_results", "alert_images"} {
		_, err = db.Exec(fmt.Sprintf(`
			DROP TRIGGER IF EXISTS %s_notify_change ON %s;
			CREATE TRIGGER %s_notify_change
			AFTER INSERT OR UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION notify_document_change()
		`, table, table, table, table))
		if err != nil {
			return fmt.Errorf("failed to create trigger for %s: %w", table, err)
		}
	}

	return nil
}

package postgresql

// migrations returns the versioned schema migrations for PostgreSQL.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS tasks (
				slug TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL,
				meta JSONB NOT NULL DEFAULT '{}',
				address_groups TEXT NOT NULL DEFAULT '',
				control_groups TEXT NOT NULL DEFAULT '',
				form_slug TEXT NOT NULL DEFAULT '',
				lead_time INTEGER,
				is_multiple_instance BOOLEAN NOT NULL DEFAULT FALSE,
				is_archived BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS workflows (
				slug TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				meta JSONB NOT NULL DEFAULT '{}',
				start_tasks TEXT[] NOT NULL DEFAULT '{}',
				is_published BOOLEAN NOT NULL DEFAULT FALSE,
				is_archived BOOLEAN NOT NULL DEFAULT FALSE,
				allow_all_forms BOOLEAN NOT NULL DEFAULT FALSE,
				allow_forms TEXT[] NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS flows (
				id UUID PRIMARY KEY,
				next TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS task_flows (
				id UUID PRIMARY KEY,
				workflow_slug TEXT NOT NULL REFERENCES workflows(slug) ON DELETE CASCADE,
				task_slug TEXT NOT NULL REFERENCES tasks(slug) ON DELETE CASCADE,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CONSTRAINT task_flows_workflow_task_key UNIQUE (workflow_slug, task_slug)
			);

			CREATE TABLE IF NOT EXISTS forms (
				slug TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				schema JSONB
			);

			CREATE TABLE IF NOT EXISTS cases (
				id UUID PRIMARY KEY,
				workflow_slug TEXT NOT NULL REFERENCES workflows(slug),
				status TEXT NOT NULL,
				family_id UUID NOT NULL,
				meta JSONB NOT NULL DEFAULT '{}',
				document JSONB,
				form_slug TEXT NOT NULL DEFAULT '',
				closed_at TIMESTAMP WITH TIME ZONE,
				closed_by_user TEXT NOT NULL DEFAULT '',
				closed_by_group TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS cases_status_idx ON cases (status);
			CREATE INDEX IF NOT EXISTS cases_family_idx ON cases (family_id);

			CREATE TABLE IF NOT EXISTS work_items (
				id UUID PRIMARY KEY,
				case_id UUID NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
				task_slug TEXT NOT NULL REFERENCES tasks(slug),
				status TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				meta JSONB NOT NULL DEFAULT '{}',
				document JSONB,
				addressed_groups TEXT[] NOT NULL DEFAULT '{}',
				controlling_groups TEXT[] NOT NULL DEFAULT '{}',
				assigned_users TEXT[] NOT NULL DEFAULT '{}',
				child_case_id UUID REFERENCES cases(id) ON DELETE SET NULL,
				deadline TIMESTAMP WITH TIME ZONE,
				closed_at TIMESTAMP WITH TIME ZONE,
				closed_by_user TEXT NOT NULL DEFAULT '',
				closed_by_group TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS work_items_case_idx ON work_items (case_id);
			CREATE INDEX IF NOT EXISTS work_items_case_task_status_idx
				ON work_items (case_id, task_slug, status);
		`,
	}
}

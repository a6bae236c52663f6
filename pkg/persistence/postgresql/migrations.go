package postgresql

// migrations returns the versioned schema for the automation engine.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS stores (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				domain VARCHAR(255) NOT NULL,
				timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
				quiet_hours JSONB NOT NULL DEFAULT '{"start_hour":21,"end_hour":8}',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_stores_domain_unique ON stores (LOWER(domain));

			CREATE TABLE IF NOT EXISTS contacts (
				id VARCHAR(255) PRIMARY KEY,
				store_id VARCHAR(255) NOT NULL REFERENCES stores(id),
				email VARCHAR(320) NOT NULL,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(64) NOT NULL DEFAULT '',
				email_consent BOOLEAN NOT NULL DEFAULT FALSE,
				sms_consent BOOLEAN NOT NULL DEFAULT FALSE,
				total_spent NUMERIC(12,2) NOT NULL DEFAULT 0,
				order_count INTEGER NOT NULL DEFAULT 0,
				tags JSONB NOT NULL DEFAULT '[]',
				segments JSONB NOT NULL DEFAULT '[]',
				last_order_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_store_email_unique ON contacts (store_id, LOWER(email));
			CREATE INDEX IF NOT EXISTS idx_contacts_store_id ON contacts (store_id);

			CREATE TABLE IF NOT EXISTS workflows (
				id VARCHAR(255) PRIMARY KEY,
				store_id VARCHAR(255) NOT NULL REFERENCES stores(id),
				name VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(64) NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				actions JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_store_trigger_active ON workflows (store_id, trigger_type, is_active);

			CREATE TABLE IF NOT EXISTS executions (
				id VARCHAR(255) PRIMARY KEY,
				idempotency_key CHAR(64) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				store_id VARCHAR(255) NOT NULL,
				contact_id VARCHAR(255) NOT NULL,
				workflow_snapshot JSONB NOT NULL,
				trigger_event JSONB NOT NULL,
				current_action INTEGER NOT NULL DEFAULT 0,
				status VARCHAR(16) NOT NULL,
				resume_at TIMESTAMP WITH TIME ZONE,
				results JSONB NOT NULL DEFAULT '[]',
				errors JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_idempotency_key_unique ON executions (idempotency_key);
			CREATE INDEX IF NOT EXISTS idx_executions_due ON executions (status, resume_at);
			CREATE INDEX IF NOT EXISTS idx_executions_store_created ON executions (store_id, created_at DESC);

			CREATE TABLE IF NOT EXISTS checkouts (
				id VARCHAR(255) NOT NULL,
				store_id VARCHAR(255) NOT NULL,
				email VARCHAR(320) NOT NULL DEFAULT '',
				data JSONB NOT NULL DEFAULT '{}',
				abandoned BOOLEAN NOT NULL DEFAULT FALSE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (store_id, id)
			);

			CREATE INDEX IF NOT EXISTS idx_checkouts_abandoned ON checkouts (store_id, abandoned);

			CREATE TABLE IF NOT EXISTS campaigns (
				id VARCHAR(255) PRIMARY KEY,
				store_id VARCHAR(255) NOT NULL REFERENCES stores(id),
				name VARCHAR(255) NOT NULL,
				channel VARCHAR(16) NOT NULL,
				segment VARCHAR(255) NOT NULL DEFAULT '',
				subject VARCHAR(998) NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				schedule VARCHAR(128) NOT NULL DEFAULT '',
				status VARCHAR(16) NOT NULL DEFAULT 'draft',
				sent_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status);
		`,
	}
}

package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				campaign_id VARCHAR(255) NOT NULL,
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				owner_timezone VARCHAR(64) NOT NULL DEFAULT '',
				steps JSONB NOT NULL DEFAULT '[]',
				settings JSONB NOT NULL DEFAULT '{}',
				obsolete BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_workflow_executions_campaign_id ON workflow_executions(campaign_id);

			CREATE TABLE leads (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL,
				email VARCHAR(320) NOT NULL,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				company VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(64) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'contacted', 'converted')),
				workflow_status VARCHAR(20) NOT NULL DEFAULT '',
				unsubscribed BOOLEAN NOT NULL DEFAULT false,
				custom_fields JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_leads_campaign_id ON leads(campaign_id);

			CREATE TABLE lead_step_states (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('CREATED', 'RUNNING', 'COMPLETED', 'FAILED', 'SKIPPED')),
				branch_result VARCHAR(3) CHECK (branch_result IN ('YES', 'NO')),
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				produced_email_ref VARCHAR(255) NOT NULL DEFAULT '',
				attempts INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (lead_id, workflow_id, step_id)
			);

			CREATE INDEX idx_lead_step_states_lead_workflow ON lead_step_states(lead_id, workflow_id);

			CREATE TABLE throttle_statuses (
				account VARCHAR(320) PRIMARY KEY,
				consecutive_failures INTEGER NOT NULL DEFAULT 0,
				last_error_at TIMESTAMP WITH TIME ZONE,
				paused_until TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE queue_items (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				settings JSONB NOT NULL DEFAULT '{}',
				processed BOOLEAN NOT NULL DEFAULT false,
				processing BOOLEAN NOT NULL DEFAULT false,
				run_after TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				claimed_at TIMESTAMP WITH TIME ZONE,
				processed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_queue_items_claimable ON queue_items(run_after, created_at) WHERE processed = false AND processing = false;
			CREATE INDEX idx_queue_items_claimed_at ON queue_items(claimed_at) WHERE processing = true;

			CREATE TABLE emails (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL DEFAULT '',
				sender VARCHAR(320) NOT NULL,
				recipient VARCHAR(320) NOT NULL,
				subject TEXT NOT NULL,
				body TEXT NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
				message_id VARCHAR(255) NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				sent_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_emails_sender_sent_at ON emails(sender, sent_at) WHERE status = 'SENT';

			CREATE TABLE connected_accounts (
				id VARCHAR(255) PRIMARY KEY,
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				provider VARCHAR(20) NOT NULL CHECK (provider IN ('gmail', 'outlook', 'imap_smtp')),
				email_address VARCHAR(320) NOT NULL UNIQUE,
				active BOOLEAN NOT NULL DEFAULT true,
				smtp_host VARCHAR(255) NOT NULL DEFAULT '',
				smtp_port INTEGER NOT NULL DEFAULT 0,
				smtp_username VARCHAR(255) NOT NULL DEFAULT '',
				smtp_password TEXT NOT NULL DEFAULT '',
				access_token TEXT NOT NULL DEFAULT '',
				refresh_token TEXT NOT NULL DEFAULT '',
				token_expires_at TIMESTAMP WITH TIME ZONE
			);
		`,
		2: `
			CREATE TABLE clicks (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				email_id VARCHAR(255) NOT NULL,
				url TEXT NOT NULL,
				clicked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_clicks_lead_email ON clicks(lead_id, email_id);

			CREATE TABLE replies (
				id VARCHAR(255) PRIMARY KEY,
				lead_id VARCHAR(255) NOT NULL,
				email_id VARCHAR(255) NOT NULL DEFAULT '',
				message_id VARCHAR(255) NOT NULL DEFAULT '',
				snippet TEXT NOT NULL DEFAULT '',
				received_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_replies_lead_id ON replies(lead_id);
		`,
		3: `
			ALTER TABLE lead_step_states ADD COLUMN retry_kind VARCHAR(16) NOT NULL DEFAULT '';
		`,
	}
}

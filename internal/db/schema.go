package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ddl is executed statement by statement on startup. Everything is
// IF NOT EXISTS so restarts are safe.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS tg_settings (
		id INT PRIMARY KEY,
		vacancy_base_price_stars INT NOT NULL DEFAULT 0,
		resume_base_price_stars INT NOT NULL DEFAULT 0,
		channel_discount_percent INT NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS tg_channels (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT UNIQUE NOT NULL,
		category TEXT NOT NULL,
		price_stars INT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true
	);`,
	`CREATE TABLE IF NOT EXISTS tg_orders (
		id UUID PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		buyer_handle TEXT,
		kind TEXT NOT NULL,
		payload JSONB NOT NULL,
		total_amount INT NOT NULL CHECK (total_amount > 0),
		status TEXT NOT NULL,
		provider_charge_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS tg_orders_status_idx ON tg_orders (status);`,
	`CREATE INDEX IF NOT EXISTS tg_orders_buyer_idx ON tg_orders (buyer_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS tg_order_channels (
		order_id UUID NOT NULL REFERENCES tg_orders(id),
		channel_id UUID NOT NULL REFERENCES tg_channels(id),
		PRIMARY KEY (order_id, channel_id)
	);`,
	`CREATE TABLE IF NOT EXISTS rc_profiles (
		id UUID PRIMARY KEY,
		telegram_user_id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		specialty TEXT NOT NULL,
		interests TEXT NOT NULL,
		linkedin TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS rc_participations (
		id UUID PRIMARY KEY,
		profile_id UUID NOT NULL REFERENCES rc_profiles(id),
		match_date DATE NOT NULL,
		status TEXT NOT NULL,
		provider_charge_id TEXT,
		matched_with UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	// At most one active sign-up per profile per match week.
	`CREATE UNIQUE INDEX IF NOT EXISTS rc_participations_active_idx
		ON rc_participations (profile_id, match_date) WHERE status = 'PAID';`,
	`CREATE INDEX IF NOT EXISTS rc_participations_date_idx ON rc_participations (match_date, status);`,
	`CREATE TABLE IF NOT EXISTS rc_history (
		id UUID PRIMARY KEY,
		met_on DATE NOT NULL DEFAULT CURRENT_DATE,
		profile_a UUID NOT NULL,
		profile_b UUID NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS rc_history_a_idx ON rc_history (profile_a);`,
	`CREATE INDEX IF NOT EXISTS rc_history_b_idx ON rc_history (profile_b);`,
}

// Migrate creates all tables and indexes, and guarantees the singleton
// settings row exists.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO tg_settings (id, vacancy_base_price_stars, resume_base_price_stars, channel_discount_percent)
		 VALUES (1, 0, 0, 0)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("migrate settings row: %w", err)
	}
	return nil
}

type seedChannel struct {
	name     string
	username string
	category string
	price    int
}

var seedChannels = []seedChannel{
	{"Analyst jobs", "@analyst_job_geeklink", "Analytics", 225},
	{"1C analyst jobs", "@analyst_consultant_1c_job", "Analytics", 225},
	{"Developers (general)", "@developers_job_geeklink", "Development", 75},
	{"Frontend", "@frontend_job_geeklink", "Development", 225},
	{"Backend", "@backend_job_geeklink", "Development", 225},
	{"Fullstack", "@fullstack_job_geeklink", "Development", 225},
	{"1C and Bitrix", "@bitrix_1c_job", "Development", 225},
	{"Pentest & Sec", "@pentest_appsec_devsecops_job", "Development", 225},
	{"Blockchain", "@blockchain_solidity_job", "Development", 225},
	{"C++", "@c_plus_plus_job_geeklink", "Development", 225},
	{"C# .NET", "@net_c_sharp_job", "Development", 225},
	{"Python", "@python_django_job", "Development", 225},
	{"Java", "@java_spring_job_geeklink", "Development", 225},
	{"Golang", "@golang_job_geeklink", "Development", 225},
	{"PHP", "@php_symfony_laravel_job", "Development", 225},
	{"JS/Node/Vue", "@js_node_typescript_vue_job", "Development", 225},
	{"Ruby", "@ruby_on_rails_job_geeklink", "Development", 225},
	{"GameDev", "@gamedev_unity_unreal_engine_jobs", "Development", 225},
	{"QA / Testing", "@qa_job_geeklink", "Development", 225},
	{"iOS", "@ios_swift_job", "Development", 225},
	{"Android", "@android_kotlin_job_geeklink", "Development", 225},
	{"Flutter", "@flutter_react_native_job", "Development", 225},
	{"DevOps", "@devops_job_geeklink", "Development", 225},
	{"DB Admin", "@database_administrator_job", "Development", 225},
	{"Support", "@otp_job_geeklink", "Development", 225},
	{"Designers", "@ux_ui_graph_designers_job", "Design", 225},
	{"Animators/3D", "@animator_modeller_2d_3d_job", "Design", 225},
	{"Marketing", "@marketing_job_geeklink", "Marketing", 225},
	{"SMM & SEO", "@smm_seo_serm_crm_job", "Marketing", 225},
	{"Ad targeting", "@targeting_job", "Marketing", 225},
	{"Directors/Managers", "@manager_job_geeklink", "Management", 225},
	{"Product/Project", "@product_project_job", "Management", 225},
	{"HR/Recruiter", "@hr_recruiter_job_geeklink", "Management", 225},
	{"Sales", "@sales_manager_job", "Management", 225},
	{"Junior", "@junior_intern_job", "Levels", 75},
	{"Middle", "@middle_job_it", "Levels", 75},
	{"Senior", "@senior_job_it", "Levels", 75},
	{"Lead", "@teamlead_job_it", "Levels", 75},
	{"Copywriters", "@editor_job", "Other", 75},
	{"Video/Sound", "@video_sound_job", "Other", 75},
	{"Relocation", "@relocate_job_geeklink", "Other", 75},
	{"Remote", "@remote_job_it_geeklink", "Other", 75},
}

// SeedChannels upserts the channel catalog keyed by username.
// Safe to run repeatedly; existing rows only get name/category/price refreshed.
func SeedChannels(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ch := range seedChannels {
		_, err := pool.Exec(ctx,
			`INSERT INTO tg_channels (id, name, username, category, price_stars)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (username) DO UPDATE
			 SET name = EXCLUDED.name,
			     category = EXCLUDED.category,
			     price_stars = EXCLUDED.price_stars`,
			uuid.NewString(), ch.name, ch.username, ch.category, ch.price,
		)
		if err != nil {
			return fmt.Errorf("seed channel %s: %w", ch.username, err)
		}
	}
	return nil
}

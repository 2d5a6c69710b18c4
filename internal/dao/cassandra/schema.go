package cassandra

import "fmt"

// 表结构与 MySQL 后端一一对应，分区键为聚合所有者，聚簇键升序
// group 为 CQL 保留字，群组表命名为 group_info
var schema = []string{
	`CREATE TYPE IF NOT EXISTS change_detail (
		operation tinyint,
		user_id   bigint,
		name      text,
		avatar    text
	)`,
	`CREATE TABLE IF NOT EXISTS im_user (
		user_id       bigint PRIMARY KEY,
		account       text,
		password_hash text,
		role          tinyint,
		status        tinyint
	)`,
	// 账号 -> 用户 ID 查找表，与 im_user 同批写入
	`CREATE TABLE IF NOT EXISTS user_by_account (
		account text PRIMARY KEY,
		user_id bigint
	)`,
	`CREATE TABLE IF NOT EXISTS user_profile (
		user_id   bigint PRIMARY KEY,
		account   text,
		nick_name text,
		avatar    text
	)`,
	`CREATE TABLE IF NOT EXISTS bot_config (
		user_id       bigint PRIMARY KEY,
		webhook_url   text,
		api_key       text,
		description   text,
		response_mode tinyint,
		created_at    bigint,
		updated_at    bigint
	)`,
	`CREATE TABLE IF NOT EXISTS relation (
		source_user_id bigint,
		target_user_id bigint,
		nick_name      text,
		avatar         text,
		remark_name    text,
		flags          tinyint,
		PRIMARY KEY (source_user_id, target_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS relation_version (
		source_user_id bigint,
		version        bigint,
		target_user_id bigint,
		operation      tinyint,
		nick_name      text,
		avatar         text,
		remark_name    text,
		flags          tinyint,
		PRIMARY KEY (source_user_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation (
		owner_id             bigint,
		conversation_id      bigint,
		peer_id              bigint,
		group_id             bigint,
		last_read_message_id bigint,
		name                 text,
		avatar               text,
		PRIMARY KEY (owner_id, conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_version (
		owner_id             bigint,
		version              bigint,
		conversation_id      bigint,
		operation            tinyint,
		peer_id              bigint,
		group_id             bigint,
		last_read_message_id bigint,
		name                 text,
		avatar               text,
		PRIMARY KEY (owner_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS group_info (
		group_id bigint PRIMARY KEY,
		name     text,
		avatar   text
	)`,
	`CREATE TABLE IF NOT EXISTS group_member (
		group_id bigint,
		user_id  bigint,
		name     text,
		avatar   text,
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_version (
		group_id bigint,
		version  bigint,
		details  list<frozen<change_detail>>,
		PRIMARY KEY (group_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS user_group (
		user_id      bigint,
		group_id     bigint,
		group_name   text,
		group_avatar text,
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_group_version (
		user_id      bigint,
		version      bigint,
		group_id     bigint,
		operation    tinyint,
		group_name   text,
		group_avatar text,
		PRIMARY KEY (user_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS message (
		conversation_id bigint,
		message_id      bigint,
		sender_id       bigint,
		receiver_id     bigint,
		group_id        bigint,
		send_timestamp  bigint,
		type            tinyint,
		text            text,
		file_url        text,
		file_name       text,
		command_type    int,
		command_data    text,
		PRIMARY KEY (conversation_id, message_id)
	)`,
}

func createKeyspaceStmt(keyspace string, replication int) string {
	return fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		keyspace, replication)
}

package store

import (
	"context"

	"go.uber.org/zap"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// InsertUser 原子写入账号与资料
// 账号重复返回 ErrUserExists；RawPassword 非空时先做 bcrypt 哈希
func (f *Facade) InsertUser(ctx context.Context, user *model.User, nickName, avatar string) error {
	if user == nil {
		return errorx.ErrInvalidParam
	}
	if err := validateStruct(user); err != nil {
		return err
	}
	if existing, err := f.backend.FindUserByAccount(ctx, user.Account); err != nil {
		return err
	} else if existing != nil {
		return errorx.Newf(errorx.CodeUserExist, "账号 %s 已存在", user.Account)
	}
	if existing, err := f.backend.FindUser(ctx, user.UserID); err != nil {
		return err
	} else if existing != nil {
		return errorx.Newf(errorx.CodeUserExist, "用户 %d 已存在", user.UserID)
	}
	if err := user.HashPassword(); err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "密码加密失败")
	}

	profile := model.UserProfile{
		UserID:   user.UserID,
		Account:  user.Account,
		NickName: nickName,
		Avatar:   avatar,
	}
	b := NewBatch(PutUser{User: *user}, PutUserProfile{Profile: profile})
	return f.commit(ctx, "insert_user", b, zap.Int64("userId", user.UserID))
}

// GetUser 用户不存在返回 ErrUserNotFound
func (f *Facade) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := f.backend.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errorx.Newf(errorx.CodeUserNotExist, "用户 %d 不存在", userID)
	}
	return user, nil
}

// GetUserByAccount 按账号查找用户
func (f *Facade) GetUserByAccount(ctx context.Context, account string) (*model.User, error) {
	user, err := f.backend.FindUserByAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errorx.Newf(errorx.CodeUserNotExist, "账号 %s 不存在", account)
	}
	return user, nil
}

func (f *Facade) ExistsUser(ctx context.Context, userID int64) (bool, error) {
	user, err := f.backend.FindUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// GetUserProfile 资料不存在返回 ErrUserProfileNotFound
func (f *Facade) GetUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	profile, err := f.backend.FindUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errorx.Newf(errorx.CodeUserProfileNotExist, "用户 %d 的资料不存在", userID)
	}
	return profile, nil
}

// UpdateUserProfile 修改昵称与头像
// 向好友关系行的扩散由外部调用 UpdateFriendNickName / UpdateFriendAvatar 完成
func (f *Facade) UpdateUserProfile(ctx context.Context, userID int64, nickName, avatar string) error {
	profile, err := f.GetUserProfile(ctx, userID)
	if err != nil {
		return err
	}
	profile.NickName = nickName
	profile.Avatar = avatar
	return f.commit(ctx, "update_user_profile", NewBatch(PutUserProfile{Profile: *profile}), zap.Int64("userId", userID))
}

// UpsertBotConfig 写入机器人配置，用户必须存在且角色为机器人
func (f *Facade) UpsertBotConfig(ctx context.Context, cfg *model.BotConfig) error {
	if cfg == nil {
		return errorx.ErrInvalidParam
	}
	if err := validateStruct(cfg); err != nil {
		return err
	}
	user, err := f.GetUser(ctx, cfg.UserID)
	if err != nil {
		return err
	}
	if user.Role != model.RoleBot {
		return errorx.Newf(errorx.CodeInvalidParam, "用户 %d 不是机器人", cfg.UserID)
	}

	now := f.now().UnixMilli()
	saved := *cfg
	saved.CreatedAt = now
	saved.UpdatedAt = now
	if existing, err := f.backend.FindBotConfig(ctx, cfg.UserID); err != nil {
		return err
	} else if existing != nil {
		saved.CreatedAt = existing.CreatedAt
	}

	if err := f.commit(ctx, "upsert_bot_config", NewBatch(PutBotConfig{Config: saved}), zap.Int64("userId", cfg.UserID)); err != nil {
		return err
	}
	*cfg = saved
	f.cache.InvalidateBotConfig(ctx, cfg.UserID)
	return nil
}

// GetBotConfig 配置不存在返回 ErrBotConfigNotFound
func (f *Facade) GetBotConfig(ctx context.Context, userID int64) (*model.BotConfig, error) {
	cfg, err := f.backend.FindBotConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errorx.Newf(errorx.CodeBotConfigNotExist, "机器人 %d 的配置不存在", userID)
	}
	return cfg, nil
}

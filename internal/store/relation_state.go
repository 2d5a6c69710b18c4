package store

import (
	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// nextRelationFlags 关系状态机
// cur 为写入前读取到的行（不存在为 nil），返回写入后的位图，0 表示删除该行
//
//	操作              前置条件                    结果
//	AddFriend         不存在，或 BLOCKED+HIDDEN     仅 FRIEND
//	RemoveFriend      FRIEND                      删除
//	BlockFriend       存在且未拉黑                 | BLOCKED
//	BlockStranger     不存在                       BLOCKED
//	Unblock           BLOCKED                     清除 BLOCKED，其余位保留
//	HideBlocked       BLOCKED                     | HIDDEN，清除 FRIEND
//	Update*           存在                         不变
func nextRelationFlags(op model.RelationOperation, cur *model.Relation) (model.RelationFlags, error) {
	var flags model.RelationFlags
	if cur != nil {
		flags = cur.Flags
	}
	exists := flags != 0

	switch op {
	case model.RelationOpAddFriend:
		switch {
		case !exists:
			return model.FlagFriend, nil
		case flags.IsFriend():
			return 0, errorx.ErrAlreadyFriends
		case flags.IsBlocked() && flags.IsHidden():
			return model.FlagFriend, nil
		}
		return 0, errorx.ErrRelationExists

	case model.RelationOpRemoveFriend:
		if !flags.IsFriend() {
			return 0, errorx.ErrNotFriends
		}
		return 0, nil

	case model.RelationOpBlockFriend:
		if !exists {
			return 0, errorx.ErrRelationNotFound
		}
		if flags.IsBlocked() {
			return 0, errorx.ErrAlreadyBlocked
		}
		return flags | model.FlagBlocked, nil

	case model.RelationOpBlockStranger:
		if exists {
			return 0, errorx.ErrStrangerHasRelationship
		}
		return model.FlagBlocked, nil

	case model.RelationOpUnblock:
		if !flags.IsBlocked() {
			return 0, errorx.ErrNotBlocked
		}
		return flags &^ model.FlagBlocked, nil

	case model.RelationOpHideBlocked:
		if !flags.IsBlocked() {
			return 0, errorx.ErrNotBlocked
		}
		return (flags | model.FlagHidden) &^ model.FlagFriend, nil

	case model.RelationOpUpdateRemarkName, model.RelationOpUpdateNickName, model.RelationOpUpdateAvatar:
		if !exists {
			return 0, errorx.ErrRelationNotFound
		}
		return flags, nil
	}
	return 0, errorx.Newf(errorx.CodeInvalidParam, "未知的关系操作: %d", op)
}

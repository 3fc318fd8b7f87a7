package repositories

import "errors"

var (
	ErrGroupNotFound    = errors.New("群组不存在")
	ErrGroupInactive    = errors.New("群组已停用")
	ErrGroupFull        = errors.New("群组成员已满")
	ErrMessageNotFound  = errors.New("消息不存在")
	ErrReplyCrossGroup  = errors.New("回复的消息不属于该群组")
	ErrUnknownRole      = errors.New("未知的组织角色")
	ErrInvalidReaction  = errors.New("不支持的回应类型")
	ErrUserNotFound     = errors.New("用户不存在")
	ErrDirectPairNeeded = errors.New("私聊群必须且只能有两个成员")
)

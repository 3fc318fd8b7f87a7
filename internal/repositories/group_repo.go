package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axpect/staffhub/internal/models"
)

// GroupRepository 即 Group Registry：成员关系是其它所有组件的叶子依赖
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// GetGroup 查询激活状态的群组
func (r *GroupRepository) GetGroup(id uint) (*models.ChatGroup, error) {
	var group models.ChatGroup
	err := r.db.First(&group, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, ErrGroupInactive
	}
	return &group, nil
}

// CreateGroup 创建群组并把创建者设为管理员成员
func (r *GroupRepository) CreateGroup(group *models.ChatGroup, creatorID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		member := models.GroupMember{
			GroupID: group.ID,
			UserID:  creatorID,
			Role:    models.MemberRoleAdmin,
		}
		return tx.Create(&member).Error
	})
}

// CreateDirectGroup 创建（或返回已有的）两人私聊群
// 私聊群恒定两个成员，第三人无法加入
func (r *GroupRepository) CreateDirectGroup(name string, userA, userB uint) (*models.ChatGroup, error) {
	if userA == userB {
		return nil, ErrDirectPairNeeded
	}

	// 先找既有的私聊群：同时包含两个激活成员的 DIRECT 群
	var existing models.ChatGroup
	err := r.db.
		Joins("JOIN group_members ma ON ma.group_id = chat_groups.id AND ma.user_id = ? AND ma.is_active", userA).
		Joins("JOIN group_members mb ON mb.group_id = chat_groups.id AND mb.user_id = ? AND mb.is_active", userB).
		Where("chat_groups.kind = ? AND chat_groups.is_active", models.GroupDirect).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	group := &models.ChatGroup{
		Name:       name,
		Kind:       models.GroupDirect,
		IsActive:   true,
		MaxMembers: 2,
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		members := []models.GroupMember{
			{GroupID: group.ID, UserID: userA, Role: models.MemberRoleMember},
			{GroupID: group.ID, UserID: userB, Role: models.MemberRoleMember},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// UpsertMember 添加成员，重复添加是 no-op 而非错误
// 写入前在事务内校验成员上限；私聊群永远拒绝新成员
func (r *GroupRepository) UpsertMember(groupID, userID uint, role string) error {
	if role == "" {
		role = models.MemberRoleMember
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var group models.ChatGroup
		if err := tx.First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if !group.IsActive {
			return ErrGroupInactive
		}

		// 已是激活成员直接短路，保持幂等
		var existing models.GroupMember
		err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&existing).Error
		if err == nil && existing.IsActive {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND is_active", groupID).
			Count(&count).Error; err != nil {
			return err
		}
		if group.IsDirect() || int(count) >= group.MaxMembers {
			return ErrGroupFull
		}

		member := models.GroupMember{
			GroupID:  groupID,
			UserID:   userID,
			Role:     role,
			IsActive: true,
		}
		// 并发重复加入时让唯一约束兜底：冲突即已存在，按成功处理
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_active": true}),
		}).Create(&member).Error
	})
}

// DeactivateMember 软退出，保留历史行
func (r *GroupRepository) DeactivateMember(groupID, userID uint) error {
	return r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("is_active", false).Error
}

// IsMember 是否为激活成员，连接授权与发言校验都走这里
func (r *GroupRepository) IsMember(groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND is_active", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// Role 查询成员的群内角色
func (r *GroupRepository) Role(groupID, userID uint) (string, error) {
	var member models.GroupMember
	err := r.db.Where("group_id = ? AND user_id = ? AND is_active", groupID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// MembersExcept 除指定用户外的所有激活成员，扇出用
func (r *GroupRepository) MembersExcept(groupID, userID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.Where("group_id = ? AND user_id <> ? AND is_active", groupID, userID).
		Find(&members).Error
	return members, err
}

// GroupsOf 用户加入的所有激活群组
func (r *GroupRepository) GroupsOf(userID uint) ([]models.ChatGroup, error) {
	var groups []models.ChatGroup
	err := r.db.
		Joins("JOIN group_members m ON m.group_id = chat_groups.id").
		Where("m.user_id = ? AND m.is_active AND chat_groups.is_active", userID).
		Order("chat_groups.name").
		Find(&groups).Error
	return groups, err
}

// Membership 查询单条成员关系（含静音与 last_read 标记）
func (r *GroupRepository) Membership(groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.Where("group_id = ? AND user_id = ? AND is_active", groupID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

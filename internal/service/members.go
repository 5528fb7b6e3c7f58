package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// Authenticate проверяет e-mail и пароль участника. Деактивированные участники
// не допускаются.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.Member, error) {
	member, err := s.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if member.Status != model.MemberStatusActive {
		return nil, ErrInvalidCredentials
	}

	return member, nil
}

// NewMemberInput описывает данные для регистрации участника администратором.
type NewMemberInput struct {
	Name           string
	Email          string
	Password       string
	Role           model.Role
	ParentVendorID *int64
	TierName       string
}

// CreateMember регистрирует нового участника. Препост обязан иметь
// родительского продавца; для остальных ролей родитель не допускается.
func (s *Service) CreateMember(ctx context.Context, actorID int64, in NewMemberInput) (*model.Member, error) {
	if in.Role == model.RoleSubAgent && in.ParentVendorID == nil {
		return nil, fmt.Errorf("%w: sub-agent requires a parent vendor", ErrForbidden)
	}
	if in.Role != model.RoleSubAgent && in.ParentVendorID != nil {
		return nil, fmt.Errorf("%w: only sub-agents may have a parent vendor", ErrForbidden)
	}

	if in.ParentVendorID != nil {
		parent, err := s.repo.GetMember(ctx, *in.ParentVendorID)
		if err != nil {
			return nil, err
		}
		if parent.Role != model.RoleVendor {
			return nil, fmt.Errorf("%w: parent must be a vendor", ErrForbidden)
		}
	}

	var tierID *int64
	if in.TierName != "" {
		tier, err := s.repo.GetTierByName(ctx, in.TierName)
		if err != nil {
			return nil, err
		}
		tierID = &tier.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member, err := s.repo.CreateMember(ctx, repository.NewMember{
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   string(hash),
		Role:           in.Role,
		ParentVendorID: in.ParentVendorID,
		TierID:         tierID,
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "member",
		EntityID: strconv.FormatInt(member.ID, 10),
		Action:   "create",
		ActorID:  &actorID,
		NewValue: marshalForAudit(member),
	})

	return member, nil
}

// EnsureAdmin создаёт администратора с указанными учётными данными, если
// участника с таким e-mail ещё нет. Пустой пароль отключает создание.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if password == "" {
		return nil
	}

	_, err := s.repo.GetMemberByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrMemberNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin, err := s.repo.CreateMember(ctx, repository.NewMember{
		Name:         "Administrador",
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	})
	if err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", zap.Int64("memberID", admin.ID))
	return nil
}

// GetMember возвращает участника по идентификатору.
func (s *Service) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return s.repo.GetMember(ctx, id)
}

// ListMembers возвращает участников по фильтру.
func (s *Service) ListMembers(ctx context.Context, f repository.MemberFilter) ([]model.Member, error) {
	return s.repo.ListMembers(ctx, f)
}

// ViewableMemberIDs возвращает идентификаторы участников, чьи данные видит
// запрашивающий: админ видит всех, продавец — себя и своих препостов,
// препост — своего продавца и себя.
func (s *Service) ViewableMemberIDs(ctx context.Context, member *model.Member) ([]int64, error) {
	switch member.Role {
	case model.RoleAdmin:
		all, err := s.repo.ListMembers(ctx, repository.MemberFilter{})
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(all))
		for _, m := range all {
			ids = append(ids, m.ID)
		}
		return ids, nil
	case model.RoleVendor:
		subAgents, err := s.repo.ListMembers(ctx, repository.MemberFilter{
			Roles:          []model.Role{model.RoleSubAgent},
			ParentVendorID: &member.ID,
		})
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(subAgents)+1)
		ids = append(ids, member.ID)
		for _, m := range subAgents {
			ids = append(ids, m.ID)
		}
		return ids, nil
	case model.RoleSubAgent:
		if member.ParentVendorID != nil {
			return []int64{*member.ParentVendorID, member.ID}, nil
		}
		return []int64{member.ID}, nil
	default:
		return []int64{member.ID}, nil
	}
}

// ValidateReferralEligibility проверяет, может ли referrer пригласить нового
// участника на уровень tier: приглашать можно только на уровень строго ниже
// собственного.
func (s *Service) ValidateReferralEligibility(ctx context.Context, referrer *model.Member, tier *model.Tier) error {
	if referrer.Status != model.MemberStatusActive {
		return ErrReferralNotEligible
	}
	if referrer.TierID == nil {
		return ErrReferralNotEligible
	}

	referrerTier, err := s.repo.GetTier(ctx, *referrer.TierID)
	if err != nil {
		return err
	}

	if tier.Rank >= referrerTier.Rank {
		return ErrReferralNotEligible
	}
	return nil
}

// ReferralLinkInfo описывает данные публичной реферальной страницы.
type ReferralLinkInfo struct {
	ReferrerName string       `json:"referrerName"`
	Tiers        []model.Tier `json:"tiers"`
}

// GetReferralLinkInfo возвращает имя приглашающего и уровни, на которые он
// может приглашать.
func (s *Service) GetReferralLinkInfo(ctx context.Context, referrerID int64) (*ReferralLinkInfo, error) {
	referrer, err := s.repo.GetMember(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	tiers, err := s.repo.ListTiers(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []model.Tier
	for _, tier := range tiers {
		if err := s.ValidateReferralEligibility(ctx, referrer, &tier); err == nil {
			eligible = append(eligible, tier)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrReferralNotEligible
	}

	return &ReferralLinkInfo{ReferrerName: referrer.Name, Tiers: eligible}, nil
}

// ReferralSignupInput описывает данные публичной регистрации по реферальной ссылке.
type ReferralSignupInput struct {
	ReferrerID int64
	Name       string
	Email      string
	Password   string
	TierName   string
	Method     string
}

// ReferralSignupResult содержит созданного участника и ожидающий оплаты платёж
// за вступление.
type ReferralSignupResult struct {
	Member  *model.Member            `json:"member"`
	Payment *model.MembershipPayment `json:"payment"`
}

// ReferralSignup регистрирует нового продавца по реферальной ссылке и создаёт
// платёж за вступление в выбранный уровень. Уровень закрепляется за участником
// только после подтверждения платежа.
func (s *Service) ReferralSignup(ctx context.Context, in ReferralSignupInput) (*ReferralSignupResult, error) {
	referrer, err := s.repo.GetMember(ctx, in.ReferrerID)
	if err != nil {
		return nil, err
	}

	tier, err := s.repo.GetTierByName(ctx, in.TierName)
	if err != nil {
		return nil, err
	}

	if err := s.ValidateReferralEligibility(ctx, referrer, tier); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member, err := s.repo.CreateMember(ctx, repository.NewMember{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         model.RoleVendor,
		ReferrerID:   &referrer.ID,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.CreateMembershipPayment(ctx, member.ID, tier.ID, tier.MembershipFee, in.Method)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "member",
		EntityID: strconv.FormatInt(member.ID, 10),
		Action:   "referral_signup",
		ActorID:  &referrer.ID,
		NewValue: marshalForAudit(member),
		Details:  fmt.Sprintf("tier %s, membership payment %d", tier.Name, payment.ID),
	})

	return &ReferralSignupResult{Member: member, Payment: payment}, nil
}

// ReferralTree строит дерево индикаций участника обходом в ширину по карте
// смежности, собранной за одну выборку всех участников. Уже посещённые
// участники не раскрываются повторно, цикл в данных фиксируется в журнале
// и не приводит к зависанию.
func (s *Service) ReferralTree(ctx context.Context, rootID int64) (*model.ReferralTreeNode, error) {
	root, err := s.repo.GetMember(ctx, rootID)
	if err != nil {
		return nil, err
	}

	_, tierNames, children, err := s.referralAdjacency(ctx)
	if err != nil {
		return nil, err
	}

	return s.buildReferralSubtree(root, tierNames, children), nil
}

// ReferralForest строит лес индикаций: корни — участники без приглашающего,
// в порядке создания.
func (s *Service) ReferralForest(ctx context.Context) ([]*model.ReferralTreeNode, error) {
	members, tierNames, children, err := s.referralAdjacency(ctx)
	if err != nil {
		return nil, err
	}

	forest := []*model.ReferralTreeNode{}
	for i := range members {
		if members[i].ReferrerID == nil {
			forest = append(forest, s.buildReferralSubtree(&members[i], tierNames, children))
		}
	}
	return forest, nil
}

func (s *Service) referralAdjacency(ctx context.Context) ([]model.Member, map[int64]string, map[int64][]*model.Member, error) {
	members, err := s.repo.ListMembers(ctx, repository.MemberFilter{})
	if err != nil {
		return nil, nil, nil, err
	}

	tiers, err := s.repo.ListTiers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	tierNames := make(map[int64]string, len(tiers))
	for _, t := range tiers {
		tierNames[t.ID] = t.Name
	}

	children := make(map[int64][]*model.Member)
	for i := range members {
		m := &members[i]
		if m.ReferrerID != nil {
			children[*m.ReferrerID] = append(children[*m.ReferrerID], m)
		}
	}

	return members, tierNames, children, nil
}

func (s *Service) buildReferralSubtree(root *model.Member, tierNames map[int64]string, children map[int64][]*model.Member) *model.ReferralTreeNode {
	rootNode := newTreeNode(root, tierNames)
	visited := map[int64]bool{root.ID: true}
	queue := []*model.ReferralTreeNode{rootNode}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, child := range children[node.ID] {
			if visited[child.ID] {
				s.logger.Warn("referral cycle detected",
					zap.Int64("memberID", child.ID),
					zap.Int64("rootID", root.ID))
				continue
			}
			visited[child.ID] = true

			childNode := newTreeNode(child, tierNames)
			node.Referrals = append(node.Referrals, childNode)
			queue = append(queue, childNode)
		}
	}

	return rootNode
}

func newTreeNode(m *model.Member, tierNames map[int64]string) *model.ReferralTreeNode {
	node := &model.ReferralTreeNode{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Role:      m.Role,
		Referrals: []*model.ReferralTreeNode{},
	}
	if m.TierID != nil {
		node.TierName = tierNames[*m.TierID]
	}
	return node
}

// UpdateMember изменяет данные участника и пишет снимки до и после в журнал аудита.
func (s *Service) UpdateMember(ctx context.Context, actorID, id int64, patch repository.MemberPatch) (*model.Member, error) {
	before, after, err := s.repo.UpdateMember(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "member",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "update",
		ActorID:  &actorID,
		OldValue: marshalForAudit(before),
		NewValue: marshalForAudit(after),
	})

	return after, nil
}

// DeleteMember удаляет участника. Удалять самого себя запрещено.
func (s *Service) DeleteMember(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDeletion
	}

	if err := s.repo.DeleteMember(ctx, id); err != nil {
		return err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "member",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "delete",
		ActorID:  &actorID,
	})

	return nil
}

func marshalForAudit(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

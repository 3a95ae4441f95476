package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// SendInput one broadcast payload and its targets
type SendInput struct {
	SenderID      string
	TargetUserIDs []string
	Content       string
	ImageURL      string
	LinkURL       string
	JobID         uint64 // non-zero when executing a scheduled job
}

// ScheduleInput a broadcast to send later
type ScheduleInput struct {
	SendInput
	ScheduledAt time.Time
}

// TargetOutcome delivery result of one target
type TargetOutcome struct {
	UserID    string
	RoomID    string
	Delivered bool
	Err       error
}

// BroadcastResult aggregate of a SendNow call
type BroadcastResult struct {
	Delivered int
	Outcomes  []TargetOutcome
}

// Failures returns a PartialDeliveryError when any target failed, otherwise nil
func (r *BroadcastResult) Failures() *common.PartialDeliveryError {
	failed := make(map[string]error)
	for _, o := range r.Outcomes {
		if !o.Delivered {
			failed[o.UserID] = o.Err
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &common.PartialDeliveryError{Delivered: r.Delivered, Failed: failed}
}

// BroadcastService fan-out of one payload to many DM rooms, now or on schedule
type BroadcastService interface {
	ResolveTargets(ctx context.Context, senderID string) (*domain.BroadcastTargets, error)
	SendNow(ctx context.Context, in SendInput) (*BroadcastResult, error)
	Schedule(ctx context.Context, in ScheduleInput) (uint64, error)
	Cancel(ctx context.Context, actor *domain.Profile, jobID uint64) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.BroadcastJob, error)
	Execute(ctx context.Context, job *domain.BroadcastJob) (*BroadcastResult, error)
	ListJobs(ctx context.Context, senderID string) ([]*domain.BroadcastJob, error)
	GetJob(ctx context.Context, jobID uint64) (*domain.BroadcastJob, error)
}

type broadcastService struct {
	repo        *repository.BroadcastRepository
	profiles    *repository.ProfileRepository
	rooms       RoomService
	messages    MessageService
	parallelism int
	now         func() time.Time
}

// NewBroadcastService creates a new BroadcastService.
// parallelism bounds concurrent target deliveries (minimum 1).
func NewBroadcastService(
	repo *repository.BroadcastRepository,
	profiles *repository.ProfileRepository,
	rooms RoomService,
	messages MessageService,
	parallelism int,
) BroadcastService {
	if parallelism < 1 {
		parallelism = 1
	}
	return &broadcastService{
		repo:        repo,
		profiles:    profiles,
		rooms:       rooms,
		messages:    messages,
		parallelism: parallelism,
		now:         time.Now,
	}
}

// ResolveTargets lists the sender's accepted connections and, for stores,
// each affiliated cast's accepted connections grouped by cast
func (s *broadcastService) ResolveTargets(ctx context.Context, senderID string) (*domain.BroadcastTargets, error) {
	sender, err := s.profiles.FindByID(ctx, senderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sender profile: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	targets := &domain.BroadcastTargets{
		DirectUsers: []domain.ProfileSummary{},
		CastGroups:  []domain.CastGroup{},
	}

	direct, err := s.summaries(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	targets.DirectUsers = direct

	if sender.Role != domain.RoleStore {
		return targets, nil
	}

	casts, err := s.profiles.CastsOfStore(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	for _, cast := range casts {
		users, err := s.summaries(ctx, cast.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		targets.CastGroups = append(targets.CastGroups, domain.CastGroup{
			Cast:    cast.ToSummary(),
			UserIDs: ids,
			Users:   users,
		})
	}
	return targets, nil
}

// summaries returns profile summaries of userID's accepted peers.
// Peers without a profile row are still listed by id.
func (s *broadcastService) summaries(ctx context.Context, userID string) ([]domain.ProfileSummary, error) {
	peerIDs, err := s.profiles.AcceptedPeerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles.FindByIDs(ctx, peerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	out := make([]domain.ProfileSummary, 0, len(peerIDs))
	for _, id := range peerIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p.ToSummary())
			continue
		}
		out = append(out, domain.ProfileSummary{ID: id})
	}
	return out, nil
}

func normalizeSendInput(in *SendInput) error {
	in.Content = strings.TrimSpace(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.SenderID == "" {
		return common.NewValidationError("sender_id", "발신자가 필요합니다")
	}
	if in.Content == "" && in.ImageURL == "" {
		return common.NewValidationError("content", "내용 또는 이미지가 필요합니다")
	}
	if in.ImageURL != "" && !common.IsResolvableReference(in.ImageURL) {
		return common.NewValidationError("image_url", "이미지 URL이 올바르지 않습니다")
	}
	if err := common.ValidateLinkURL(in.LinkURL); err != nil {
		return err
	}

	targets := domain.NormalizeMembers("", in.TargetUserIDs)
	filtered := targets[:0]
	for _, id := range targets {
		if id != in.SenderID {
			filtered = append(filtered, id)
		}
	}
	in.TargetUserIDs = filtered
	return nil
}

// SendNow delivers to every target in parallel. One target failing never
// cancels the others; failures are listed in the result.
// Delivery is detached from ctx cancellation: a caller that stops waiting
// does not abort the remaining targets.
func (s *broadcastService) SendNow(ctx context.Context, in SendInput) (*BroadcastResult, error) {
	if err := normalizeSendInput(&in); err != nil {
		return nil, err
	}
	if len(in.TargetUserIDs) == 0 {
		return nil, common.NewValidationError("target_user_ids", "수신자를 선택해주세요")
	}
	return s.fanOut(context.WithoutCancel(ctx), in), nil
}

func (s *broadcastService) fanOut(ctx context.Context, in SendInput) *BroadcastResult {
	outcomes := make([]TargetOutcome, len(in.TargetUserIDs))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, target := range in.TargetUserIDs {
		i, target := i, target
		g.Go(func() error {
			outcomes[i] = s.deliverSafely(ctx, in, target)
			// 개별 실패가 다른 대상 발송을 취소하지 않도록 항상 nil
			return nil
		})
	}
	_ = g.Wait()

	result := &BroadcastResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Delivered {
			result.Delivered++
			broadcastDeliveries.WithLabelValues("delivered").Inc()
		} else {
			broadcastDeliveries.WithLabelValues("failed").Inc()
		}
	}

	if failures := result.Failures(); failures != nil {
		logger.GetLogger().Warn().
			Str("sender_id", in.SenderID).
			Uint64("job_id", in.JobID).
			Int("delivered", failures.Delivered).
			Strs("failed", failures.FailedIDs()).
			Msg("broadcast partially delivered")
	}
	return result
}

func (s *broadcastService) deliverSafely(ctx context.Context, in SendInput, target string) (out TargetOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = TargetOutcome{UserID: target, Err: fmt.Errorf("delivery panic: %v", r)}
		}
	}()
	return s.deliver(ctx, in, target)
}

// deliver resolves the DM room and appends the image first, then the text
func (s *broadcastService) deliver(ctx context.Context, in SendInput, target string) TargetOutcome {
	out := TargetOutcome{UserID: target}

	room, err := s.rooms.ResolveOrCreateDM(ctx, in.SenderID, target)
	if err != nil {
		out.Err = fmt.Errorf("resolve room: %w", err)
		return out
	}
	out.RoomID = room.ID

	clientID := func(kind string) string {
		if in.JobID == 0 {
			return ""
		}
		return fmt.Sprintf("bc-%d-%s-%s", in.JobID, target, kind)
	}

	if in.ImageURL != "" {
		link := ""
		if in.Content == "" {
			link = in.LinkURL
		}
		_, err := s.messages.Append(ctx, AppendInput{
			RoomID:      room.ID,
			SenderID:    in.SenderID,
			Content:     in.ImageURL,
			Type:        domain.MessageTypeImage,
			LinkURL:     link,
			ClientMsgID: clientID("img"),
		})
		if err != nil {
			out.Err = fmt.Errorf("append image: %w", err)
			return out
		}
	}

	if in.Content != "" {
		_, err := s.messages.Append(ctx, AppendInput{
			RoomID:      room.ID,
			SenderID:    in.SenderID,
			Content:     in.Content,
			Type:        domain.MessageTypeText,
			LinkURL:     in.LinkURL,
			ClientMsgID: clientID("txt"),
		})
		if err != nil {
			out.Err = fmt.Errorf("append text: %w", err)
			return out
		}
	}

	out.Delivered = true
	return out
}

// Schedule stores a pending job with one pending recipient per target. Nothing is sent.
func (s *broadcastService) Schedule(ctx context.Context, in ScheduleInput) (uint64, error) {
	if err := normalizeSendInput(&in.SendInput); err != nil {
		return 0, err
	}
	if len(in.TargetUserIDs) == 0 {
		return 0, common.NewValidationError("target_user_ids", "수신자를 선택해주세요")
	}
	if !in.ScheduledAt.After(s.now()) {
		return 0, common.NewValidationError("scheduled_at", "예약 시간은 현재 이후여야 합니다")
	}

	job := &domain.BroadcastJob{
		SenderID:    in.SenderID,
		Content:     in.Content,
		ImageURL:    in.ImageURL,
		LinkURL:     in.LinkURL,
		Status:      domain.JobStatusPending,
		ScheduledAt: in.ScheduledAt,
	}
	if err := s.repo.CreateJob(ctx, job, in.TargetUserIDs); err != nil {
		return 0, err
	}
	return job.ID, nil
}

// Cancel deletes a pending job. Only its sender or an admin may cancel.
func (s *broadcastService) Cancel(ctx context.Context, actor *domain.Profile, jobID uint64) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if actor == nil || (actor.ID != job.SenderID && actor.Role != domain.RoleAdmin) {
		return common.ErrForbidden
	}

	deleted, err := s.repo.DeletePending(ctx, jobID, "")
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}

	exists, err := s.repo.Exists(ctx, jobID)
	if err != nil {
		return err
	}
	if !exists {
		return common.ErrJobNotFound
	}
	return common.ErrJobNotPending
}

// ClaimDue claims due pending jobs. Each job is returned to exactly one caller.
func (s *broadcastService) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.BroadcastJob, error) {
	if limit < 1 {
		limit = 1
	}
	ids, err := s.repo.DueJobIDs(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	claimed := make([]*domain.BroadcastJob, 0, len(ids))
	for _, id := range ids {
		ok, err := s.repo.Claim(ctx, id, now)
		if err != nil {
			return claimed, err
		}
		if !ok {
			// 다른 워커가 먼저 가져갔거나 취소됨
			continue
		}
		job, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// Execute sends a claimed job to its pending recipients and records the outcome.
// The job ends sent when at least one recipient was delivered (or it had none),
// failed when every recipient failed.
func (s *broadcastService) Execute(ctx context.Context, job *domain.BroadcastJob) (*BroadcastResult, error) {
	if job.Status != domain.JobStatusProcessing {
		return nil, common.ErrJobNotPending
	}

	var pending []string
	delivered := 0
	for _, r := range job.Recipients {
		switch r.Status {
		case domain.RecipientSent:
			delivered++
		case domain.RecipientPending:
			pending = append(pending, r.UserID)
		}
	}

	result := &BroadcastResult{}
	if len(pending) > 0 {
		in := SendInput{
			SenderID:      job.SenderID,
			TargetUserIDs: pending,
			Content:       job.Content,
			ImageURL:      job.ImageURL,
			LinkURL:       job.LinkURL,
			JobID:         job.ID,
		}
		if err := normalizeSendInput(&in); err != nil {
			// 저장된 작업이 더 이상 유효하지 않음 → 전원 실패 처리
			result.Outcomes = make([]TargetOutcome, len(pending))
			for i, id := range pending {
				result.Outcomes[i] = TargetOutcome{UserID: id, Err: err}
			}
		} else {
			result = s.fanOut(ctx, in)
		}
	}

	var recordErr error
	for _, o := range result.Outcomes {
		status, errMsg := domain.RecipientSent, ""
		if !o.Delivered {
			status = domain.RecipientFailed
			if o.Err != nil {
				errMsg = o.Err.Error()
			}
		}
		if err := s.repo.UpdateRecipient(ctx, job.ID, o.UserID, status, o.RoomID, errMsg); err != nil {
			recordErr = errors.Join(recordErr, err)
		}
	}
	delivered += result.Delivered
	result.Delivered = delivered

	final := domain.JobStatusFailed
	if delivered > 0 || len(job.Recipients) == 0 {
		final = domain.JobStatusSent
	}
	if err := s.repo.Finish(ctx, job.ID, final, delivered, s.now()); err != nil {
		return result, errors.Join(recordErr, err)
	}
	broadcastJobsFinished.WithLabelValues(string(final)).Inc()

	job.Status = final
	job.DeliveredCount = delivered
	return result, recordErr
}

// ListJobs returns a sender's jobs
func (s *broadcastService) ListJobs(ctx context.Context, senderID string) ([]*domain.BroadcastJob, error) {
	return s.repo.ListBySender(ctx, senderID)
}

// GetJob returns a job with its recipients
func (s *broadcastService) GetJob(ctx context.Context, jobID uint64) (*domain.BroadcastJob, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrJobNotFound
	}
	return job, err
}

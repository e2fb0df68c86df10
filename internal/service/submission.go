package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fabsignup/fabsignup/internal/catalog"
	"github.com/fabsignup/fabsignup/internal/database"
	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/internal/notify"
	"github.com/fabsignup/fabsignup/internal/resolver"
	"github.com/fabsignup/fabsignup/pkg/fabman"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// StatusAdded 成功后写回的状态文本
const StatusAdded = "Added to Fabman"

// SubmissionRequest 一次表单提交：回复表中的行号与带类型的单元格
type SubmissionRequest struct {
	RowNumber int          `json:"row_number" binding:"required,min=2"`
	Cells     []model.Cell `json:"cells" binding:"required"`
}

// Submit 处理一次提交。失败时错误写回状态并原样返回；邮箱重复只写友好状态，不返回错误
func (s *SignupService) Submit(ctx context.Context, req SubmissionRequest) (*model.Submission, error) {
	sub := &model.Submission{
		ID:        uuid.NewString(),
		RowNumber: req.RowNumber,
		Cells:     req.Cells,
		State:     model.SubmissionReceived,
	}
	header, err := s.ResponseHeader(ctx)
	if err != nil {
		return nil, err
	}
	sub.StatusColumn = statusColumn(header, req.Cells)
	if err := s.saveSubmission(ctx, sub); err != nil {
		return nil, err
	}
	log := logger.WithField("submission", sub.ID)
	log.WithField("row", sub.RowNumber).Info("Submission received")

	err = s.process(ctx, sub)
	var dup *resolver.DuplicateMemberError
	switch {
	case err == nil:
		log.WithField("member", sub.MemberID).Info("Submission reported")
	case errors.As(err, &dup):
		sub.State = model.SubmissionDuplicate
		sub.Status = duplicateStatus(dup)
		log.WithField("email", dup.Email).Warn("Duplicate member")
		err = nil
	default:
		sub.State = model.SubmissionFailed
		sub.Status = "Error occurred while trying to create the member:\n" + err.Error()
		log.WithField("error", err).Error("Submission failed")
	}
	if serr := s.saveSubmission(ctx, sub); serr != nil {
		logger.Error("Failed to store submission status", "submission", sub.ID, "error", serr)
	}
	return sub, err
}

func (s *SignupService) process(ctx context.Context, sub *model.Submission) error {
	cfg := s.conf()
	rcfg, err := s.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if rcfg.APIKey == "" {
		return ErrNoAPIKey
	}
	order, err := s.formOrder(ctx)
	if err != nil {
		return err
	}

	payload, err := resolver.Resolve(toRow(sub.Cells), order, rcfg)
	if err != nil {
		return err
	}
	s.advance(ctx, sub, model.SubmissionFieldsResolved)

	client := s.remote(rcfg.APIKey)
	var me *fabman.Me
	var spaces []fabman.Space
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		me, err = client.FetchMe(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		spaces, err = client.FetchSpaces(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	payload.Member[catalog.AttrAccount] = strconv.FormatInt(me.Account, 10)
	if payload.Member[catalog.AttrNotes] == "" && cfg.Member.DefaultNote != "" {
		payload.Member[catalog.AttrNotes] = cfg.Member.DefaultNote
	}
	space, err := resolver.ResolveSpace(payload, spaces, me.Account)
	if err != nil {
		return err
	}
	s.advance(ctx, sub, model.SubmissionSpaceResolved)

	member, err := client.CreateMember(ctx, payload.Body())
	if fabman.IsDuplicateEmail(err) {
		return s.notifyDuplicate(ctx, payload, space, me.Account)
	}
	if err != nil {
		return err
	}
	sub.MemberID = member.ID
	s.advance(ctx, sub, model.SubmissionMemberCreated)

	today := s.now().In(spaceLocation(space)).Format("2006-01-02")
	for _, pkg := range payload.Packages {
		fromDate := pkg.FromDate
		if fromDate == "" {
			fromDate = today
		}
		if err := client.CreateMemberPackage(ctx, member.ID, fabman.MemberPackage{
			Package:  pkg.PackageID,
			FromDate: fromDate,
			Notes:    cfg.Member.PackageNote,
		}); err != nil {
			return err
		}
	}
	s.advance(ctx, sub, model.SubmissionPackagesAssigned)

	account := member.Account
	if account == 0 {
		account = me.Account
	}
	sub.Status = StatusAdded
	sub.StatusLink = fmt.Sprintf("%s/%d/members/%d", strings.TrimRight(cfg.Fabman.ManageURL, "/"), account, member.ID)
	sub.State = model.SubmissionReported
	return nil
}

// notifyDuplicate 通知报名者邮箱已注册；发送失败记录在错误中但不视为失败
func (s *SignupService) notifyDuplicate(ctx context.Context, payload *resolver.Payload, space fabman.Space, account int64) error {
	email := payload.Member[catalog.AttrEmail]
	dup := &resolver.DuplicateMemberError{Email: email, Space: space.Name}
	if email == "" {
		dup.NotifyErr = errors.New("no email address was submitted")
		return dup
	}
	membersURL := strings.TrimRight(s.conf().Fabman.MembersURL, "/")
	body := fmt.Sprintf("You tried signing up for %s, but there's already a member with your email address.\n\n"+
		"* If you already have an account and want to sign in, please go to %s/%d/login\n"+
		"* If you have forgotten your password, then go to %s/%d/user/password-forgotten",
		space.Name, membersURL, account, membersURL, account)
	dup.NotifyErr = s.notifier.Send(ctx, notify.Message{
		To:      email,
		Subject: "Sign-up for " + space.Name,
		Body:    body,
	})
	return dup
}

func duplicateStatus(dup *resolver.DuplicateMemberError) string {
	msg := "This email address is already registered. The member was not created again"
	if dup.NotifyErr != nil {
		return msg + ", and the notification could not be sent: " + dup.NotifyErr.Error()
	}
	return msg + "; a notification was sent to " + dup.Email + "."
}

// advance 推进状态并落库；落库失败只记录
func (s *SignupService) advance(ctx context.Context, sub *model.Submission, state string) {
	sub.State = state
	if err := s.saveSubmission(ctx, sub); err != nil {
		logger.Warn("Failed to store submission state", "submission", sub.ID, "state", state, "error", err)
	}
}

func (s *SignupService) saveSubmission(ctx context.Context, sub *model.Submission) error {
	return database.WithRetry(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Save(sub).Error
	}, 3, 0)
}

// statusColumn 状态写在最后一列之后；最后一列若本身是提交字段则再右移一列
func statusColumn(header []string, cells []model.Cell) int {
	last := len(header)
	if last == 0 {
		for _, c := range cells {
			if c.Column > last {
				last = c.Column
			}
		}
		return last + 1
	}
	title := header[last-1]
	if title == "" {
		return last
	}
	for _, c := range cells {
		if c.Field == title {
			return last + 1
		}
	}
	return last
}

// toRow 单元格转为解析输入，保留原始类型
func toRow(cells []model.Cell) resolver.Row {
	row := make(resolver.Row, 0, len(cells))
	for _, c := range cells {
		if c.Field == "" {
			continue
		}
		var v resolver.Value
		switch c.Type {
		case model.CellNumber:
			v = resolver.Number(c.Number)
		case model.CellDate:
			if c.Date != nil {
				v = resolver.DateValue(*c.Date)
			} else {
				v = resolver.String("")
			}
		default:
			v = resolver.String(c.Text)
		}
		row = append(row, resolver.Field{Name: c.Field, Value: v})
	}
	return row
}

func spaceLocation(space fabman.Space) *time.Location {
	if space.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(space.Timezone)
	if err != nil {
		logger.Warn("Unknown space time zone, using UTC", "timezone", space.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

// Submission 按 ID 读取
func (s *SignupService) Submission(ctx context.Context, id string) (*model.Submission, error) {
	var sub model.Submission
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Submissions 最近的提交
func (s *SignupService) Submissions(ctx context.Context, limit int) ([]model.Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var subs []model.Submission
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&subs).Error
	return subs, err
}

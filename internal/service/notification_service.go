package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/weekend-course-api/internal/models"
	"github.com/noah-isme/weekend-course-api/pkg/jobs"
	"github.com/noah-isme/weekend-course-api/pkg/mailer"
)

const jobTypeRegistrationDecision = "registration_decision"

type registrationDecisionPayload struct {
	Student  models.Student
	Approved bool
}

// NotificationService delivers outbound mail off the request path. Delivery
// failures are retried by the queue and never surface to API callers.
type NotificationService struct {
	queue  *jobs.Queue
	sender mailer.Sender
	logger *zap.Logger
}

// NewNotificationService builds the notification pipeline on top of a worker queue.
func NewNotificationService(sender mailer.Sender, workers int, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = mailer.NewLogSender(logger)
	}
	svc := &NotificationService{sender: sender, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return svc
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyRegistrationDecision enqueues the approval/rejection email for a student.
func (s *NotificationService) NotifyRegistrationDecision(student models.Student, approved bool) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeRegistrationDecision,
		Payload: registrationDecisionPayload{Student: student, Approved: approved},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue registration decision email",
			zap.String("student_id", student.ID),
			zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeRegistrationDecision:
		payload, ok := job.Payload.(registrationDecisionPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for %s", job.Payload, job.Type)
		}
		return s.sender.Send(ctx, s.registrationDecisionMessage(payload))
	default:
		return fmt.Errorf("unknown job type %s", job.Type)
	}
}

func (s *NotificationService) registrationDecisionMessage(payload registrationDecisionPayload) mailer.Message {
	student := payload.Student
	if payload.Approved {
		return mailer.Message{
			ToName:    student.FullName,
			ToAddress: student.Email,
			Subject:   "Your registration has been approved",
			TextBody: fmt.Sprintf("Hello %s,\n\nYour registration (student number %s) has been approved. "+
				"You can now be assigned to weekend sessions and attend classes.\n", student.FullName, student.StudentNumber),
		}
	}
	return mailer.Message{
		ToName:    student.FullName,
		ToAddress: student.Email,
		Subject:   "Your registration has been rejected",
		TextBody: fmt.Sprintf("Hello %s,\n\nUnfortunately your registration (student number %s) has been rejected. "+
			"Please contact the administration for details.\n", student.FullName, student.StudentNumber),
	}
}

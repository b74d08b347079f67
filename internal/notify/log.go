package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/logging"
)

// LogNotifier writes the notification to the application log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(logger)}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info(Message(n),
		zap.String("appointment_id", n.AppointmentID.String()),
		zap.String("doctor", n.DoctorName),
		zap.String("patient", n.PatientName),
		zap.String("date", n.Date),
		zap.String("time", n.Time),
	)
	return nil
}

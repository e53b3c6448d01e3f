package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithUserID creates a new logger entry with user ID field
func (l *Logger) WithUserID(userID string) *logrus.Entry {
	return l.Logger.WithField("user_id", userID)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})

	if traceID := ctx.Value("trace_id"); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}

	if requestID := ctx.Value("request_id"); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}

	if userID := ctx.Value("user_id"); userID != nil {
		entry = entry.WithField("user_id", userID)
	}

	return entry
}

// Audit logs audit events with structured format
func (l *Logger) Audit(userID, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"user_id":  userID,
		"action":   action,
		"resource": resource,
		"success":  success,
		"details":  details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// Security logs security-related events
func (l *Logger) Security(event string, userID string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"security": true,
		"event":    event,
		"user_id":  userID,
		"details":  details,
	}).Warn("Security event")
}

// CredentialEvent logs credential lifecycle events
func (l *Logger) CredentialEvent(userID, credentialID, proofType, action string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"credential":    true,
		"user_id":       userID,
		"credential_id": credentialID,
		"proof_type":    proofType,
		"action":        action,
		"success":       success,
		"details":       details,
	})

	if success {
		entry.Info("Credential event")
	} else {
		entry.Warn("Credential event failed")
	}
}

// RecordAccess logs medical record access events
func (l *Logger) RecordAccess(ctx context.Context, patientID, accessorID, recordID, accessType string, verified bool, details map[string]interface{}) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"record_access":       true,
		"patient_id":          patientID,
		"accessor_id":         accessorID,
		"record_id":           recordID,
		"access_type":         accessType,
		"blockchain_verified": verified,
		"details":             details,
	}).Info("Record access")
}

// ChainTransaction logs blockchain transaction events
func (l *Logger) ChainTransaction(ctx context.Context, function, txHash string, success bool, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"blockchain": true,
		"function":   function,
		"tx_hash":    txHash,
		"success":    success,
		"details":    details,
	})

	if success {
		entry.Info("Blockchain transaction completed")
	} else {
		entry.Error("Blockchain transaction failed")
	}
}

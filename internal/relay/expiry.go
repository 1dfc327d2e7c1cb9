package relay

import "time"

// DefaultMessageExpiry — срок жизни сообщения по умолчанию (как в комнате
// без своего messageExpiryTime).
const DefaultMessageExpiry = 60 * time.Second

// Deadline вычисляет момент, после которого сообщение считается устаревшим.
func Deadline(sentAt time.Time, expiry time.Duration) time.Time {
	return sentAt.Add(expiry)
}

// IsExpired — true, начиная ровно с момента дедлайна.
func IsExpired(deadline, now time.Time) bool {
	return !now.Before(deadline)
}

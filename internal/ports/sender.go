package ports

// Role визначає категорію підключеного клієнта
type Role string

const (
	RoleDrone       Role = "drone"
	RoleApplication Role = "application"
)

// ValidRole перевіряє, чи належить роль до дозволеного переліку
func ValidRole(r Role) bool {
	return r == RoleDrone || r == RoleApplication
}

// ChannelSender визначає операції доставлення повідомлень живим каналам.
// Реалізується реєстром з'єднань; сервіси залежать лише від цього інтерфейсу.
type ChannelSender interface {
	// Send відправляє повідомлення конкретному клієнту; false означає,
	// що канал мертвий і вже вилучений з реєстру
	Send(role Role, clientID string, message map[string]interface{}) bool

	// Broadcast відправляє повідомлення всім каналам ролі та повертає
	// кількість успішних доставлень
	Broadcast(role Role, message map[string]interface{}) int

	// IsConnected повідомляє, чи має клієнт живий канал
	IsConnected(role Role, clientID string) bool
}

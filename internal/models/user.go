package models

// Role определяет роль участника платформы
type Role string

const (
	RoleShipper   Role = "empresa"       // грузоотправитель, владелец груза
	RoleCarrier   Role = "transportista" // перевозчик
	RoleModerator Role = "sendix"        // модератор платформы (nexus)
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleShipper, RoleCarrier, RoleModerator:
		return true
	}
	return false
}

// User представляет минимальную информацию о пользователе для API
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	TelegramID int64  `json:"-"`
}

// Sender – подписанная личность автора сообщения для отображения
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// AsSender возвращает краткое представление пользователя
func (u *User) AsSender() Sender {
	if u == nil {
		return Sender{}
	}
	return Sender{ID: u.ID, Name: u.Name, Role: u.Role}
}

package model

type Base struct {
	ID int
}

type Left struct {
	Shared string
}

type Right struct {
	Shared string
}

func (Left) Ping() string  { return "left" }
func (Right) Ping() string { return "right" }

type Label string

type User struct {
	Base
	Left
	Right
	Name  string
	Tag   Label
	email string
}

func (u *User) Save() error { return nil }

func (u *User) rename(name string) { u.Name = name }

func (u *User) Wide15(a, b, c, d, e, f, g, h, i, j, k, l, m, n, o int) {}

func (u *User) Wide16(a, b, c, d, e, f, g, h, i, j, k, l, m, n, o, p int) int { return 0 }

type Store interface {
	Get(key string) (string, error)
}

var Count int

var defaultUser = &User{Name: "root"}

func NewUser(name string) *User { return &User{Name: name} }

func Sum16(a, b, c, d, e, f, g, h, i, j, k, l, m, n, o, p int) int { return a + p }

func Sum17(a, b, c, d, e, f, g, h, i, j, k, l, m, n, o, p, q int) {}

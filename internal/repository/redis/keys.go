package redis

import (
	"fmt"
	"strings"
)

type keys struct {
	prefix string
}

func (k keys) player(id int64) string {
	return fmt.Sprintf("%s:player:%d", k.prefix, id)
}

func (k keys) playerTeams(id int64) string {
	return fmt.Sprintf("%s:player:%d:teams", k.prefix, id)
}

func (k keys) playerReservations(id int64) string {
	return fmt.Sprintf("%s:player:%d:reservations", k.prefix, id)
}

func (k keys) reservation(id int64) string {
	return fmt.Sprintf("%s:reservation:%d", k.prefix, id)
}

func (k keys) code(code string) string {
	return fmt.Sprintf("%s:code:%s", k.prefix, code)
}

func teamMember(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

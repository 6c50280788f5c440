package core

import "fmt"

// Identity is the author recorded on every commit.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

type Database struct {
	Name string `json:"name"`
}

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lujainibrahim/dyad-study/internal/models"
)

// ADMIN_PASSWORD_HASH 값 생성. 비밀번호는 인자 또는 표준 입력으로 받는다.
func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatal("Failed to read password:", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}
	fmt.Println(hash)
}

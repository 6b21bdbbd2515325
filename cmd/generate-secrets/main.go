package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/almazaya/travel-backend/internal/utils"
)

func main() {
	adminPassword := flag.String("admin-password", "", "hash this password for ADMIN_PASSWORD_HASH")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for Almazaya Travel")
	fmt.Println("===========================================")
	fmt.Println()

	secrets, err := utils.GenerateLocalSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secrets.JWTSecret)

	if *adminPassword != "" {
		hash, err := utils.HashAdminPassword(*adminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
		fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hash)
	}

	fmt.Println()
	fmt.Println("Sandbox only. Production AES values are issued by the bank:")
	fmt.Printf("PAYMENT_AES_KEY=%s\n", secrets.AESKey)
	fmt.Printf("PAYMENT_AES_IV=%s\n", secrets.AESIV)
	fmt.Println()
	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"MathAgent/sdk/go/mathagent"
)

func main() {
	baseURL := os.Getenv("MATHAGENT_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client, err := mathagent.NewClient(baseURL, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := client.Query(ctx, mathagent.QueryRequest{Query: "What is the sum of 7 and 8, squared?"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.FullResponse)

	task, err := client.SubmitTask(ctx, mathagent.QueryRequest{Query: "Calculate the area of a circle with radius 3"})
	if err != nil {
		log.Fatal(err)
	}
	done, err := client.WaitForTask(ctx, task.ID, time.Second)
	if err != nil {
		log.Fatal(err)
	}
	if done.Result != nil {
		fmt.Printf("task %s %s: %s\n", done.ID, done.Status, done.Result.Answer)
	}
}

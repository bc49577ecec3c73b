package authsession

import "github.com/crmdash/crmdash/internal/cli/client"

const loginMutation = `
mutation Login($email: String!) {
    login(loginInput: {
        email: $email
    }) {
        accessToken
    }
}`

const meProbeQuery = `
query Me {
    me {
        name
    }
}`

const meIdentityQuery = `
query Me {
    me {
        id
        name
        email
        phone
        jobTitle
        timezone
        avatarUrl
    }
}`

func loginRequest(email string) client.Request {
	return client.Request{
		OperationName: "Login",
		Query:         loginMutation,
		Variables:     map[string]any{"email": email},
	}
}

func meProbeRequest() client.Request {
	return client.Request{OperationName: "Me", Query: meProbeQuery}
}

func meIdentityRequest() client.Request {
	return client.Request{OperationName: "Me", Query: meIdentityQuery}
}

type loginResponse struct {
	Login struct {
		AccessToken string `json:"accessToken"`
	} `json:"login"`
}

type meResponse struct {
	Me *Identity `json:"me"`
}

package renderer

// Flat-shaded cave walls: a directional key light, a headlight from the eye,
// and distance fog. Normals point into the air side, so back faces flip them.
const caveVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;

uniform mat4 uViewProj;

out vec3 vWorldPos;
out vec3 vNormal;

void main() {
    vWorldPos = aPosition;
    vNormal = aNormal;
    gl_Position = uViewProj * vec4(aPosition, 1.0);
}
`

const caveFragmentShader = `
#version 410 core

in vec3 vWorldPos;
in vec3 vNormal;

uniform vec3 uEye;
uniform vec3 uLightDir;
uniform vec3 uBaseColor;
uniform vec3 uFogColor;
uniform float uFogFar;

out vec4 FragColor;

void main() {
    vec3 n = normalize(vNormal);
    if (!gl_FrontFacing) {
        n = -n;
    }
    vec3 toEye = uEye - vWorldPos;
    float dist = length(toEye);
    vec3 v = toEye / max(dist, 1e-4);

    float key = max(dot(n, normalize(uLightDir)), 0.0);
    float head = max(dot(n, v), 0.0);
    vec3 color = uBaseColor * (0.15 + 0.45 * key + 0.55 * head);

    float fog = clamp(dist / uFogFar, 0.0, 1.0);
    FragColor = vec4(mix(color, uFogColor, fog * fog), 1.0);
}
`

const lineVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPosition;

uniform mat4 uViewProj;

void main() {
    gl_Position = uViewProj * vec4(aPosition, 1.0);
}
`

const lineFragmentShader = `
#version 410 core

uniform vec3 uColor;

out vec4 FragColor;

void main() {
    FragColor = vec4(uColor, 1.0);
}
`
